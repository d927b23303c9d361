// Package reviews records patient reviews of completed appointments and keeps
// the provider's rating in step with them.
package reviews

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/cache"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

const maxCommentLength = 2000

type CreateInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type Service struct {
	uow    storage.UnitOfWork
	cache  *cache.Cache
	logger *logging.Logger
}

func NewService(uow storage.UnitOfWork, c *cache.Cache, logger *logging.Logger) *Service {
	if uow == nil {
		panic("reviews: unit of work required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{uow: uow, cache: c, logger: logger}
}

// Create stores the patient's review and recomputes the provider's average
// rating and review count in the same transaction.
func (s *Service) Create(ctx context.Context, actor identity.Actor, appointmentID uuid.UUID, in CreateInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	comment := strings.TrimSpace(in.Comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return nil, apperr.Validation("comment must be at most %d characters", maxCommentLength)
	}

	var out *models.Review
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		appt, err := r.Appointments.Get(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !actor.IsPatient(appt.PatientID) {
			return apperr.Forbidden("only the patient can review appointment %s", appt.ID)
		}
		if appt.Status != models.StatusCompleted {
			return apperr.Validation("only completed appointments can be reviewed")
		}
		rv := &models.Review{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			ProviderID:    appt.ProviderID,
			Rating:        in.Rating,
			Comment:       comment,
		}
		if err := r.Reviews.Create(ctx, rv); err != nil {
			return err
		}
		avg, count, err := r.Reviews.Aggregate(ctx, appt.ProviderID)
		if err != nil {
			return err
		}
		if err := r.Providers.SetRating(ctx, appt.ProviderID, avg.Round(1), count); err != nil {
			return err
		}
		out = rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateProvider(ctx, out.ProviderID)
	s.logger.Info("review created", "review_id", out.ID, "provider_id", out.ProviderID, "rating", out.Rating)
	return out, nil
}

func (s *Service) ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.uow.Repos().Reviews.ListByProvider(ctx, providerID, limit, offset)
}
