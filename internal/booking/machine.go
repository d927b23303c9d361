package booking

import (
	"sort"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
)

// Party is a bit set of the roles an actor holds on one appointment.
type Party uint8

const (
	PartyPatient Party = 1 << iota
	PartyProvider
	PartyAdmin
)

const anyParty = PartyPatient | PartyProvider | PartyAdmin

type edge struct {
	from models.AppointmentStatus
	to   models.AppointmentStatus
}

// transitions is the complete table; any pair missing here is invalid.
var transitions = map[edge]Party{
	{models.StatusPending, models.StatusConfirmed}:     PartyProvider | PartyAdmin,
	{models.StatusPending, models.StatusCancelled}:     anyParty,
	{models.StatusConfirmed, models.StatusCompleted}:   PartyProvider | PartyAdmin,
	{models.StatusConfirmed, models.StatusCancelled}:   anyParty,
	{models.StatusConfirmed, models.StatusRescheduled}: anyParty,
}

// PartyOf reports how actor relates to the appointment. Zero means the actor
// is neither participant nor admin.
func PartyOf(actor identity.Actor, a *models.Appointment) Party {
	var p Party
	if actor.IsPatient(a.PatientID) {
		p |= PartyPatient
	}
	if actor.OwnsProvider(a.ProviderID) {
		p |= PartyProvider
	}
	if actor.IsAdmin() {
		p |= PartyAdmin
	}
	return p
}

// CheckTransition validates from -> to for the given party. Unknown edges
// are InvalidTransition; known edges the party may not take are Forbidden.
func CheckTransition(from, to models.AppointmentStatus, party Party) error {
	allowed, ok := transitions[edge{from, to}]
	if !ok {
		return apperr.InvalidTransition(string(from), string(to))
	}
	if allowed&party == 0 {
		return apperr.Forbidden("not allowed to move appointment from %s to %s", from, to)
	}
	return nil
}

// Targets lists the statuses reachable from from, sorted.
func Targets(from models.AppointmentStatus) []models.AppointmentStatus {
	var out []models.AppointmentStatus
	for e := range transitions {
		if e.from == from {
			out = append(out, e.to)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
