package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenlife/careconnect/internal/app/bootstrap"
	appconfig "github.com/goldenlife/careconnect/internal/config"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/internal/storage/memory"
	"github.com/goldenlife/careconnect/pkg/logging"
)

func TestEmbeddedSeedApplies(t *testing.T) {
	var seed SeedFile
	require.NoError(t, json.Unmarshal(defaultSeed, &seed))
	require.Len(t, seed.Providers, 3)

	store := memory.New()
	cfg := &appconfig.Config{Currency: "EUR"}
	svcs, err := bootstrap.BuildServices(cfg, store, nil, nil, logging.New("error"))
	require.NoError(t, err)

	// 2025-03-03 is a Monday; seven days cover every weekday once.
	monday := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)
	sum, err := run(context.Background(), store, svcs, seed, monday, 7, 30, logging.New("error"))
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Admins)
	assert.Equal(t, 3, sum.Providers)
	assert.Equal(t, 2, sum.Offerings)
	assert.Equal(t, 2, sum.Promos)
	// 3 days x 12 + 2 days x 16 + 5 days x 10
	assert.Equal(t, 118, sum.Slots)

	verified, err := store.Repos().Providers.Search(context.Background(), storage.ProviderFilter{VerifiedOnly: true, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, verified, 2)

	admin, err := store.Repos().Users.GetByEmail(context.Background(), "admin@goldenlife.example")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	again, err := run(context.Background(), store, svcs, seed, monday, 7, 30, logging.New("error"))
	require.NoError(t, err)
	assert.Equal(t, Summary{}, again)
}
