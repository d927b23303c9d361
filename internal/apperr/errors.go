// Package apperr defines the error kinds every service returns to the HTTP
// layer. Callers test with errors.Is against the sentinels below.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the transport layer.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInvalidWindow     Kind = "invalid_window"
	KindSlotUnavailable   Kind = "slot_unavailable"
	KindInvalidTransition Kind = "invalid_transition"
	KindPromoInvalid      Kind = "promo_invalid"
	KindFeeNotConfigured  Kind = "fee_not_configured"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindUnauthenticated   Kind = "unauthenticated"
	KindInternal          Kind = "internal"
)

// Promo rejection reasons.
const (
	ReasonUnknown       = "unknown"
	ReasonInactive      = "inactive"
	ReasonNotStarted    = "not-started"
	ReasonExpired       = "expired"
	ReasonExhausted     = "exhausted"
	ReasonNotApplicable = "not-applicable"
	ReasonBelowMinimum  = "below-minimum"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind, and on reason when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidWindow     = &Error{Kind: KindInvalidWindow}
	ErrSlotUnavailable   = &Error{Kind: KindSlotUnavailable}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrPromoInvalid      = &Error{Kind: KindPromoInvalid}
	ErrFeeNotConfigured  = &Error{Kind: KindFeeNotConfigured}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func InvalidWindow(format string, args ...any) error {
	return &Error{Kind: KindInvalidWindow, Message: fmt.Sprintf(format, args...)}
}

func SlotUnavailable(slotID string) error {
	return &Error{Kind: KindSlotUnavailable, Message: "slot " + slotID + " is not available"}
}

func InvalidTransition(from, to string) error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot move appointment from %s to %s", from, to)}
}

func PromoInvalid(reason, code string) error {
	return &Error{Kind: KindPromoInvalid, Reason: reason, Message: "promo code " + code + " cannot be applied"}
}

func FeeNotConfigured(providerID, visitType string) error {
	return &Error{Kind: KindFeeNotConfigured, Message: fmt.Sprintf("provider %s has no fee for %s visits", providerID, visitType)}
}

func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Message: entity + " " + id + " not found"}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(msg string) error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf reports the reason of the first *Error in err's chain.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
