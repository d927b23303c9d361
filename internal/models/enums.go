package models

import (
	"fmt"
	"strings"
)

// Role is the account role carried in auth tokens.
type Role string

const (
	RolePatient  Role = "patient"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalises and validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// ProviderType is the kind of healthcare professional.
type ProviderType string

const (
	ProviderPhysiotherapist ProviderType = "physiotherapist"
	ProviderDoctor          ProviderType = "doctor"
	ProviderNurse           ProviderType = "nurse"
)

func (t ProviderType) Valid() bool {
	switch t {
	case ProviderPhysiotherapist, ProviderDoctor, ProviderNurse:
		return true
	}
	return false
}

func ParseProviderType(s string) (ProviderType, error) {
	t := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown provider type %q", s)
	}
	return t, nil
}

// VisitType selects which provider fee applies.
type VisitType string

const (
	VisitOnline VisitType = "online"
	VisitHome   VisitType = "home"
	VisitClinic VisitType = "clinic"
)

func (v VisitType) Valid() bool {
	switch v {
	case VisitOnline, VisitHome, VisitClinic:
		return true
	}
	return false
}

func ParseVisitType(s string) (VisitType, error) {
	v := VisitType(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown visit type %q", s)
	}
	return v, nil
}

// AppointmentStatus is a booking state. Transitions live in the booking package.
type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusRescheduled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRescheduled
}

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	st := AppointmentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
	return st, nil
}

// PaymentStatus is tracked independently of the appointment status.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentRefunded, PaymentFailed:
		return true
	}
	return false
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown payment status %q", s)
	}
	return st, nil
}

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodWallet PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCard || m == MethodWallet
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment method %q", s)
	}
	return m, nil
}

// DiscountType is how a promo code reduces the amount.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (d DiscountType) Valid() bool {
	return d == DiscountPercentage || d == DiscountFixed
}

func ParseDiscountType(s string) (DiscountType, error) {
	d := DiscountType(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown discount type %q", s)
	}
	return d, nil
}

type WalletTxKind string

const (
	WalletTopUp   WalletTxKind = "topup"
	WalletPayment WalletTxKind = "payment"
	WalletRefund  WalletTxKind = "refund"
)

type ChatRole string

const (
	ChatUser      ChatRole = "user"
	ChatAssistant ChatRole = "assistant"
)
