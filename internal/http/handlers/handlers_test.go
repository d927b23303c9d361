package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/booking"
	"github.com/goldenlife/careconnect/internal/chat"
	"github.com/goldenlife/careconnect/internal/http/middleware"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/money"
	"github.com/goldenlife/careconnect/internal/payments"
	"github.com/goldenlife/careconnect/internal/pricing"
	"github.com/goldenlife/careconnect/internal/providers"
	"github.com/goldenlife/careconnect/internal/records"
	"github.com/goldenlife/careconnect/internal/reviews"
	"github.com/goldenlife/careconnect/internal/slots"
	"github.com/goldenlife/careconnect/internal/storage/memory"
	"github.com/goldenlife/careconnect/internal/users"
	"github.com/goldenlife/careconnect/internal/wallet"
)

const (
	testSecret = "handler-test-secret"
	// 2025-03-03 is a Monday.
	testDate = "2025-03-03"
)

type harness struct {
	store    *memory.Store
	mux      chi.Router
	patient  identity.Actor
	provider identity.Actor
	admin    identity.Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	repos := store.Repos()

	patient := &models.User{Email: "pat@example.com", FirstName: "Pat", Role: models.RolePatient}
	require.NoError(t, repos.Users.Create(ctx, patient))
	provUser := &models.User{Email: "nurse@example.com", FirstName: "Nora", Role: models.RoleProvider}
	require.NoError(t, repos.Users.Create(ctx, provUser))
	prov := &models.Provider{
		UserID:            provUser.ID,
		Type:              models.ProviderNurse,
		ConsultationFee:   money.Ptr(decimal.NewFromInt(40)),
		Active:            true,
		Verified:          true,
		AvailableDays:     models.Weekdays{models.Monday},
		WorkingHoursStart: "08:00",
		WorkingHoursEnd:   "12:00",
		Timezone:          "UTC",
	}
	require.NoError(t, repos.Providers.Create(ctx, prov))

	alloc := slots.NewAllocator(store, nil, nil)
	ps := pricing.NewService(pricing.ServiceConfig{UnitOfWork: store})
	bs := booking.NewService(booking.Config{UnitOfWork: store, Pricing: ps})
	pay := payments.NewService(payments.Config{UnitOfWork: store})
	rv := reviews.NewService(store, nil, nil)
	us := users.NewService(store, nil)

	accounts := NewAccountsHandler(us, testSecret, time.Hour, nil)
	provs := NewProvidersHandler(providers.NewService(store, nil, nil), alloc, rv, nil)
	appts := NewAppointmentsHandler(AppointmentsConfig{Booking: bs, Pricing: ps, Payments: pay, Reviews: rv})
	wh := NewWalletHandler(wallet.NewService(store, wallet.DefaultMaxTopUp, "USD", nil), chat.NewService(store, nil, nil), nil)
	admin := NewAdminHandler(ps, pay, nil)
	hr := NewRecordsHandler(records.NewService(store, nil), nil)

	r := chi.NewRouter()
	r.Post("/api/users/register", accounts.Register)
	r.Post("/api/auth/login", accounts.Login)
	r.Get("/api/me", accounts.Me)
	r.Get("/api/providers/{providerID}/availability", provs.Availability)
	r.Post("/api/provider/slots", provs.CreateSlots)
	r.Post("/api/provider/slots/{slotID}/block", provs.Block)
	r.Post("/api/quotes", appts.Quote)
	r.Post("/api/appointments", appts.Book)
	r.Get("/api/appointments", appts.List)
	r.Post("/api/appointments/{appointmentID}/transitions", appts.Transition)
	r.Post("/api/appointments/{appointmentID}/payments", appts.Pay)
	r.Get("/api/wallet", wh.Balance)
	r.Post("/api/wallet/topup", wh.TopUp)
	r.Post("/api/chat", wh.ChatSend)
	r.Post("/api/admin/promo-codes", admin.CreatePromo)
	r.Post("/api/admin/payments/{paymentID}/status", admin.SettlePayment)
	r.Get("/api/health-records", hr.List)
	r.Post("/api/health-records", hr.Create)
	r.Get("/api/health-records/{recordID}", hr.Get)
	r.Delete("/api/health-records/{recordID}", hr.Delete)

	return &harness{
		store:    store,
		mux:      r,
		patient:  identity.Actor{UserID: patient.ID, Role: models.RolePatient},
		provider: identity.Actor{UserID: provUser.ID, Role: models.RoleProvider, ProviderID: prov.ID},
		admin:    identity.Actor{UserID: uuid.New(), Role: models.RoleAdmin},
	}
}

func (h *harness) do(t *testing.T, method, path string, actor *identity.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != nil {
		req = req.WithContext(identity.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (h *harness) createSlots(t *testing.T) []models.TimeSlot {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/provider/slots", &h.provider, CreateSlotsRequest{
		Date: testDate,
		Windows: []slots.Window{
			{Start: "09:00", End: "09:30"},
			{Start: "09:30", End: "10:00"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[struct {
		Slots []models.TimeSlot `json:"slots"`
	}](t, rec).Slots
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Validation("x"), http.StatusBadRequest},
		{apperr.InvalidWindow("x"), http.StatusBadRequest},
		{apperr.PromoInvalid(apperr.ReasonExpired, "SPRING"), http.StatusUnprocessableEntity},
		{apperr.FeeNotConfigured(uuid.NewString(), "home"), http.StatusUnprocessableEntity},
		{apperr.NotFound("provider", uuid.NewString()), http.StatusNotFound},
		{apperr.SlotUnavailable(uuid.NewString()), http.StatusConflict},
		{apperr.InvalidTransition("completed", "pending"), http.StatusConflict},
		{apperr.Conflict("x"), http.StatusConflict},
		{apperr.Forbidden("x"), http.StatusForbidden},
		{apperr.Unauthenticated("x"), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	writeError(rec, req, mustLogger(nil), errors.New("pq: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "internal error", body.Message)
}

func TestRegisterIssuesToken(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/users/register", nil, users.RegisterInput{
		Email: "New@Example.com", Password: "correct-horse", FirstName: "Nia",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[TokenResponse](t, rec)
	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.Empty(t, resp.User.PasswordHash)

	actor, err := middleware.ParseToken(testSecret, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, actor.UserID)
	assert.Equal(t, models.RolePatient, actor.Role)

	rec = h.do(t, http.MethodPost, "/api/auth/login", nil, LoginRequest{Email: "new@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/login", nil, LoginRequest{Email: "new@example.com", Password: "correct-horse"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMeRequiresActor(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeBody[ErrorResponse](t, rec).Error)
}

func TestEmptyBodyIsValidationError(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/quotes", &h.patient, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSlotsOwnership(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/provider/slots", &h.admin, CreateSlotsRequest{
		Date: testDate, Windows: []slots.Window{{Start: "09:00", End: "09:30"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "admin must name the provider")

	rec = h.do(t, http.MethodPost, "/api/provider/slots", &h.provider, CreateSlotsRequest{
		ProviderID: uuid.New(), Date: testDate, Windows: []slots.Window{{Start: "09:00", End: "09:30"}},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/provider/slots", &h.provider, CreateSlotsRequest{
		Date: testDate, Windows: []slots.Window{{Start: "11:30", End: "12:30"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_window", decodeBody[ErrorResponse](t, rec).Error)
}

func TestBookingFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	created := h.createSlots(t)
	require.Len(t, created, 2)

	path := "/api/providers/" + h.provider.ProviderID.String() + "/availability?from=" + testDate + "&to=" + testDate
	rec := h.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/appointments", &h.provider, booking.BookRequest{
		ProviderID: h.provider.ProviderID, SlotID: created[0].ID, VisitType: models.VisitClinic,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code, "providers cannot book")

	book := booking.BookRequest{ProviderID: h.provider.ProviderID, SlotID: created[0].ID, VisitType: models.VisitClinic}
	rec = h.do(t, http.MethodPost, "/api/appointments", &h.patient, book)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decodeBody[booking.Booking](t, rec)
	assert.Equal(t, models.StatusPending, b.Appointment.Status)
	assert.Equal(t, h.patient.UserID, b.Appointment.PatientID)
	assert.True(t, b.Quote.Total.Equal(decimal.NewFromInt(40)))

	rec = h.do(t, http.MethodPost, "/api/appointments", &h.patient, book)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decodeBody[ErrorResponse](t, rec).Error)

	transition := "/api/appointments/" + b.Appointment.ID.String() + "/transitions"
	rec = h.do(t, http.MethodPost, transition, &h.patient, booking.TransitionRequest{To: models.StatusConfirmed})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, transition, &h.provider, booking.TransitionRequest{To: models.StatusConfirmed})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[booking.TransitionResult](t, rec)
	assert.Equal(t, models.StatusConfirmed, res.Appointment.Status)

	rec = h.do(t, http.MethodPost, transition, &h.provider, booking.TransitionRequest{To: models.StatusPending})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decodeBody[ErrorResponse](t, rec).Error)

	rec = h.do(t, http.MethodGet, "/api/appointments", &h.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[struct {
		Appointments []models.Appointment `json:"appointments"`
	}](t, rec).Appointments
	assert.Len(t, list, 1)
}

func TestUnknownPromoIs422WithReason(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/quotes", &h.patient, pricing.QuoteRequest{
		ProviderID: h.provider.ProviderID, VisitType: models.VisitClinic, PromoCode: "NOPE",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "promo_invalid", body.Error)
	assert.Equal(t, apperr.ReasonUnknown, body.Reason)
}

func TestPromoAppliedOverHTTP(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/admin/promo-codes", &h.admin, pricing.PromoInput{
		Code:          "welcome10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(24 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/quotes", &h.patient, pricing.QuoteRequest{
		ProviderID: h.provider.ProviderID, VisitType: models.VisitClinic, PromoCode: "WELCOME10",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decodeBody[pricing.Quote](t, rec)
	assert.True(t, q.Total.Equal(decimal.NewFromInt(36)), q.Total.String())
}

func TestWalletPaymentOverHTTP(t *testing.T) {
	h := newHarness(t)
	created := h.createSlots(t)
	rec := h.do(t, http.MethodPost, "/api/appointments", &h.patient, booking.BookRequest{
		ProviderID: h.provider.ProviderID, SlotID: created[1].ID, VisitType: models.VisitClinic,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	b := decodeBody[booking.Booking](t, rec)
	payPath := "/api/appointments/" + b.Appointment.ID.String() + "/payments"

	rec = h.do(t, http.MethodPost, payPath, &h.patient, payments.PayRequest{Method: models.MethodWallet})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty wallet")

	rec = h.do(t, http.MethodPost, "/api/wallet/topup", &h.patient, wallet.TopUpRequest{Amount: decimal.NewFromInt(100)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, payPath, &h.patient, payments.PayRequest{Method: models.MethodWallet})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, models.PaymentCompleted, decodeBody[models.Payment](t, rec).Status)

	rec = h.do(t, http.MethodGet, "/api/wallet", &h.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decodeBody[wallet.Summary](t, rec)
	assert.True(t, sum.Balance.Equal(decimal.NewFromInt(60)), sum.Balance.String())
}

func TestCardPaymentSettledByAdmin(t *testing.T) {
	h := newHarness(t)
	created := h.createSlots(t)
	rec := h.do(t, http.MethodPost, "/api/appointments", &h.patient, booking.BookRequest{
		ProviderID: h.provider.ProviderID, SlotID: created[0].ID, VisitType: models.VisitClinic,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	b := decodeBody[booking.Booking](t, rec)

	rec = h.do(t, http.MethodPost, "/api/appointments/"+b.Appointment.ID.String()+"/payments", &h.patient,
		payments.PayRequest{Method: models.MethodCard})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	p := decodeBody[models.Payment](t, rec)

	settle := "/api/admin/payments/" + p.ID.String() + "/status"
	rec = h.do(t, http.MethodPost, settle, &h.admin, payments.SettleRequest{Status: models.PaymentCompleted})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.PaymentCompleted, decodeBody[models.Payment](t, rec).Status)

	rec = h.do(t, http.MethodPost, settle, &h.admin, payments.SettleRequest{Status: models.PaymentCompleted})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestChatOverHTTP(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/chat", &h.patient, ChatRequest{Content: "How do I book a visit?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ex := decodeBody[chat.Exchange](t, rec)
	assert.NotEmpty(t, ex.Reply.Content)

	rec = h.do(t, http.MethodPost, "/api/chat", &h.patient, ChatRequest{Content: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthRecordsLifecycle(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/health-records", &h.patient, records.CreateInput{
		Title:   "Allergy letter",
		FileURL: "https://files.example.com/allergy.pdf",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[models.HealthRecord](t, rec)
	assert.Equal(t, h.patient.UserID, created.PatientID)

	rec = h.do(t, http.MethodGet, "/api/health-records", &h.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[struct {
		Records []models.HealthRecord `json:"records"`
	}](t, rec)
	require.Len(t, list.Records, 1)
	assert.Equal(t, created.ID, list.Records[0].ID)

	path := "/api/health-records/" + created.ID.String()
	other := identity.Actor{UserID: uuid.New(), Role: models.RolePatient}
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, path, &other, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, path, &other, nil).Code)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, path, &h.patient, nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, path, &h.patient, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, path, &h.patient, nil).Code)
}

func TestHealthRecordRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/health-records", &h.patient, map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/health-records", &h.provider, records.CreateInput{Title: "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/health-records", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
