// Package records keeps the health records a patient uploads: lab results,
// letters and other documents, visible only to that patient.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	DefaultPageSize      = 50
)

type CreateInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	FileURL     string          `json:"file_url,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
}

type Service struct {
	uow    storage.UnitOfWork
	logger *logging.Logger
}

func NewService(uow storage.UnitOfWork, logger *logging.Logger) *Service {
	if uow == nil {
		panic("records: unit of work required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{uow: uow, logger: logger}
}

// Create files a record for the calling patient.
func (s *Service) Create(ctx context.Context, actor identity.Actor, in CreateInput) (*models.HealthRecord, error) {
	if actor.Role != models.RolePatient {
		return nil, apperr.Forbidden("only patients keep health records")
	}
	rec, err := newRecord(actor.UserID, in)
	if err != nil {
		return nil, err
	}
	if err := s.uow.Repos().Records.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("health record created", "record_id", rec.ID, "patient_id", rec.PatientID)
	return rec, nil
}

func (s *Service) List(ctx context.Context, actor identity.Actor, limit, offset int) ([]models.HealthRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.uow.Repos().Records.ListByPatient(ctx, actor.UserID, limit, offset)
}

// Get returns the record when the caller owns it. Records of other patients
// read as missing.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*models.HealthRecord, error) {
	rec, err := s.uow.Repos().Records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.PatientID != actor.UserID {
		return nil, apperr.NotFound("health record", id.String())
	}
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		rec, err := r.Records.Get(ctx, id)
		if err != nil {
			return err
		}
		if rec.PatientID != actor.UserID {
			return apperr.NotFound("health record", id.String())
		}
		return r.Records.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("health record deleted", "record_id", id, "patient_id", actor.UserID)
	return nil
}

func newRecord(patientID uuid.UUID, in CreateInput) (*models.HealthRecord, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, apperr.Validation("title must be at most %d characters", maxTitleLength)
	}
	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return nil, apperr.Validation("description must be at most %d characters", maxDescriptionLength)
	}
	fileURL := strings.TrimSpace(in.FileURL)
	if fileURL != "" {
		u, err := url.ParseRequestURI(fileURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, apperr.Validation("file_url must be an http or https URL")
		}
	}
	details := bytes.TrimSpace(in.Details)
	if len(details) > 0 && !bytes.Equal(details, []byte("null")) {
		if !json.Valid(details) || details[0] != '{' {
			return nil, apperr.Validation("details must be a JSON object")
		}
	} else {
		details = nil
	}
	return &models.HealthRecord{
		PatientID:   patientID,
		Title:       title,
		Description: description,
		FileURL:     fileURL,
		Details:     json.RawMessage(details),
	}, nil
}
