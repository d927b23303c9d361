package records

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage/memory"
)

func patientActor() identity.Actor {
	return identity.Actor{UserID: uuid.New(), Role: models.RolePatient}
}

func TestCreateAndListOwnRecords(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()
	pat := patientActor()

	rec, err := svc.Create(ctx, pat, CreateInput{
		Title:       "  Blood test  ",
		Description: "Fasting panel",
		FileURL:     "https://files.example.com/blood.pdf",
		Details:     json.RawMessage(`{"hemoglobin": 13.5}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Blood test", rec.Title)
	assert.Equal(t, pat.UserID, rec.PatientID)
	assert.JSONEq(t, `{"hemoglobin": 13.5}`, string(rec.Details))

	_, err = svc.Create(ctx, pat, CreateInput{Title: "X-ray"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, patientActor(), CreateInput{Title: "Someone else"})
	require.NoError(t, err)

	list, err := svc.List(ctx, pat, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, r := range list {
		assert.Equal(t, pat.UserID, r.PatientID)
	}

	got, err := svc.Get(ctx, pat, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor identity.Actor
		in    CreateInput
		want  error
	}{
		{"missing title", patientActor(), CreateInput{Title: "  "}, apperr.ErrValidation},
		{"long title", patientActor(), CreateInput{Title: strings.Repeat("a", maxTitleLength+1)}, apperr.ErrValidation},
		{"long description", patientActor(), CreateInput{Title: "t", Description: strings.Repeat("ü", maxDescriptionLength+1)}, apperr.ErrValidation},
		{"relative url", patientActor(), CreateInput{Title: "t", FileURL: "/files/a.pdf"}, apperr.ErrValidation},
		{"ftp url", patientActor(), CreateInput{Title: "t", FileURL: "ftp://files.example.com/a.pdf"}, apperr.ErrValidation},
		{"details array", patientActor(), CreateInput{Title: "t", Details: json.RawMessage(`[1,2]`)}, apperr.ErrValidation},
		{"provider", identity.Actor{UserID: uuid.New(), Role: models.RoleProvider}, CreateInput{Title: "t"}, apperr.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	rec, err := svc.Create(ctx, patientActor(), CreateInput{Title: "t", Details: json.RawMessage(`null`)})
	require.NoError(t, err)
	assert.Nil(t, rec.Details)
}

func TestRecordsAreScopedToOwner(t *testing.T) {
	store := memory.New()
	svc := NewService(store, nil)
	ctx := context.Background()
	owner, other := patientActor(), patientActor()

	rec, err := svc.Create(ctx, owner, CreateInput{Title: "MRI"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, other, rec.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, other, rec.ID), apperr.ErrNotFound)

	_, err = store.Repos().Records.Get(ctx, rec.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, owner, rec.ID))
	_, err = svc.Get(ctx, owner, rec.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, owner, rec.ID), apperr.ErrNotFound)
}
