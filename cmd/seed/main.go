package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/goldenlife/careconnect/internal/app/bootstrap"
	"github.com/goldenlife/careconnect/internal/apperr"
	appconfig "github.com/goldenlife/careconnect/internal/config"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/pricing"
	"github.com/goldenlife/careconnect/internal/providers"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/internal/users"
	"github.com/goldenlife/careconnect/pkg/logging"
)

//go:embed seed.json
var defaultSeed []byte

// SeedFile is the JSON document the seeder applies.
type SeedFile struct {
	Admin      users.RegisterInput  `json:"admin"`
	Providers  []SeedProvider       `json:"providers"`
	PromoCodes []pricing.PromoInput `json:"promo_codes"`
}

type SeedProvider struct {
	providers.AdminCreateInput
	Verified  bool                      `json:"verified"`
	Offerings []providers.OfferingInput `json:"offerings"`
}

// Summary counts what a run created. Records that already exist are skipped.
type Summary struct {
	Admins    int
	Providers int
	Offerings int
	Slots     int
	Promos    int
}

func main() {
	file := flag.String("file", "", "seed JSON file (defaults to the embedded sample data)")
	days := flag.Int("days", 14, "generate slots for this many days from today")
	slotMinutes := flag.Int("slot-minutes", 30, "slot length used when generating days")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	data := defaultSeed
	if *file != "" {
		raw, err := os.ReadFile(*file)
		if err != nil {
			logger.Error("read seed file", "file", *file, "error", err)
			os.Exit(1)
		}
		data = raw
	}
	var seed SeedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		logger.Error("parse seed file", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := bootstrap.BuildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	svcs, err := bootstrap.BuildServices(cfg, store, nil, nil, logger)
	if err != nil {
		logger.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	sum, err := run(ctx, store, svcs, seed, time.Now(), *days, *slotMinutes, logger)
	if err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("seeded %d admin, %d providers, %d services, %d slots, %d promo codes\n",
		sum.Admins, sum.Providers, sum.Offerings, sum.Slots, sum.Promos)
}

func run(ctx context.Context, uow storage.UnitOfWork, svcs *bootstrap.Services, seed SeedFile, today time.Time, days, slotMinutes int, logger *logging.Logger) (Summary, error) {
	var sum Summary

	if seed.Admin.Email != "" {
		created, err := seedAdmin(ctx, uow, seed.Admin)
		if err != nil {
			return sum, err
		}
		if created {
			sum.Admins++
		}
	}

	for _, sp := range seed.Providers {
		prof, err := svcs.Providers.AdminCreate(ctx, sp.AdminCreateInput)
		if errors.Is(err, apperr.ErrConflict) {
			logger.Info("provider already seeded", "email", sp.Email)
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("seed: provider %s: %w", sp.Email, err)
		}
		sum.Providers++
		if sp.Verified {
			if _, err := svcs.Providers.SetVerified(ctx, prof.Provider.ID, true); err != nil {
				return sum, fmt.Errorf("seed: verify %s: %w", sp.Email, err)
			}
		}

		actor := identity.Actor{UserID: prof.Provider.UserID, Role: models.RoleProvider, ProviderID: prof.Provider.ID}
		for _, o := range sp.Offerings {
			if _, err := svcs.Providers.AddOffering(ctx, actor, o); err != nil {
				return sum, fmt.Errorf("seed: service %q for %s: %w", o.Name, sp.Email, err)
			}
			sum.Offerings++
		}

		for d := 0; d < days; d++ {
			date := today.AddDate(0, 0, d).Format(models.DateLayout)
			created, err := svcs.Slots.GenerateDay(ctx, prof.Provider.ID, date, slotMinutes)
			if errors.Is(err, apperr.ErrInvalidWindow) {
				// Not a working day, or already full.
				continue
			}
			if err != nil {
				return sum, fmt.Errorf("seed: slots for %s on %s: %w", sp.Email, date, err)
			}
			sum.Slots += len(created)
		}
	}

	for _, in := range seed.PromoCodes {
		if _, err := uow.Repos().Promos.GetByCode(ctx, pricing.NormalizeCode(in.Code)); err == nil {
			logger.Info("promo code already seeded", "code", in.Code)
			continue
		}
		if _, err := svcs.Pricing.CreatePromo(ctx, in); err != nil {
			return sum, fmt.Errorf("seed: promo %s: %w", in.Code, err)
		}
		sum.Promos++
	}
	return sum, nil
}

func seedAdmin(ctx context.Context, uow storage.UnitOfWork, in users.RegisterInput) (bool, error) {
	u, err := users.NewUser(in, models.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("seed: admin: %w", err)
	}
	if err := uow.Repos().Users.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("seed: admin: %w", err)
	}
	return true, nil
}
