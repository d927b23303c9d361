package booking

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
)

var allStatuses = []models.AppointmentStatus{
	models.StatusPending, models.StatusConfirmed, models.StatusCompleted,
	models.StatusCancelled, models.StatusRescheduled,
}

func TestCheckTransitionTable(t *testing.T) {
	tests := []struct {
		from, to models.AppointmentStatus
		party    Party
		want     error
	}{
		{models.StatusPending, models.StatusConfirmed, PartyProvider, nil},
		{models.StatusPending, models.StatusConfirmed, PartyAdmin, nil},
		{models.StatusPending, models.StatusConfirmed, PartyPatient, apperr.ErrForbidden},
		{models.StatusPending, models.StatusCancelled, PartyPatient, nil},
		{models.StatusPending, models.StatusCompleted, PartyAdmin, apperr.ErrInvalidTransition},
		{models.StatusPending, models.StatusRescheduled, PartyPatient, apperr.ErrInvalidTransition},
		{models.StatusConfirmed, models.StatusCompleted, PartyProvider, nil},
		{models.StatusConfirmed, models.StatusCompleted, PartyPatient, apperr.ErrForbidden},
		{models.StatusConfirmed, models.StatusRescheduled, PartyPatient, nil},
		{models.StatusConfirmed, models.StatusCancelled, PartyProvider, nil},
		{models.StatusCompleted, models.StatusConfirmed, PartyAdmin, apperr.ErrInvalidTransition},
		{models.StatusCompleted, models.StatusPending, PartyAdmin, apperr.ErrInvalidTransition},
		{models.StatusCancelled, models.StatusPending, PartyAdmin, apperr.ErrInvalidTransition},
		{models.StatusRescheduled, models.StatusConfirmed, PartyAdmin, apperr.ErrInvalidTransition},
	}
	for _, tt := range tests {
		err := CheckTransition(tt.from, tt.to, tt.party)
		if tt.want == nil {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
			continue
		}
		assert.ErrorIs(t, err, tt.want, "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatesHaveNoTargets(t *testing.T) {
	for _, s := range allStatuses {
		if s.Terminal() {
			assert.Empty(t, Targets(s), string(s))
			for _, to := range allStatuses {
				assert.ErrorIs(t, CheckTransition(s, to, anyParty), apperr.ErrInvalidTransition)
			}
		}
	}
	assert.Equal(t, []models.AppointmentStatus{models.StatusCancelled, models.StatusConfirmed}, Targets(models.StatusPending))
}

func TestPartyOf(t *testing.T) {
	appt := &models.Appointment{PatientID: uuid.New(), ProviderID: uuid.New()}
	assert.Equal(t, PartyPatient, PartyOf(identity.Actor{UserID: appt.PatientID, Role: models.RolePatient}, appt))
	assert.Equal(t, PartyProvider, PartyOf(identity.Actor{UserID: uuid.New(), Role: models.RoleProvider, ProviderID: appt.ProviderID}, appt))
	assert.Equal(t, PartyAdmin, PartyOf(identity.Actor{UserID: uuid.New(), Role: models.RoleAdmin}, appt))
	assert.Equal(t, Party(0), PartyOf(identity.Actor{UserID: uuid.New(), Role: models.RolePatient}, appt))
}
