package chat

import (
	"context"
	"strings"

	"github.com/goldenlife/careconnect/internal/models"
)

// Responder produces the assistant reply for a user message. history holds
// the conversation so far, oldest first, ending with the new user message.
type Responder interface {
	Reply(ctx context.Context, history []models.ChatMessage, text string) (string, error)
}

type faqEntry struct {
	keywords []string
	answer   string
}

// FAQResponder answers from a fixed keyword table.
type FAQResponder struct {
	entries  []faqEntry
	fallback string
}

func NewFAQResponder() *FAQResponder {
	return &FAQResponder{
		entries: []faqEntry{
			{
				keywords: []string{"book", "appointment", "schedule"},
				answer:   "To book, open a provider's profile, pick a free time slot and choose an online, clinic or home visit. New bookings stay pending until the provider confirms them.",
			},
			{
				keywords: []string{"cancel", "reschedul"},
				answer:   "You can cancel or reschedule pending and confirmed appointments from My Appointments. Payments for cancelled appointments are refunded to the method you paid with.",
			},
			{
				keywords: []string{"promo", "discount", "coupon", "code"},
				answer:   "Enter a promo code when booking. The price summary shows the discount before you confirm; codes can have an expiry date, a minimum amount and a usage limit.",
			},
			{
				keywords: []string{"wallet", "top up", "topup", "balance"},
				answer:   "Your wallet balance can pay for appointments instantly. Top it up from the Wallet page; refunds for wallet payments go straight back to it.",
			},
			{
				keywords: []string{"pay", "card", "refund"},
				answer:   "Appointments can be paid by card or from your wallet. Card payments are confirmed by our payment partner, usually within a few minutes.",
			},
			{
				keywords: []string{"home visit", "home"},
				answer:   "Home visits use the provider's home visit fee. Add your address when booking so the provider knows where to go.",
			},
			{
				keywords: []string{"physio", "doctor", "nurse", "provider", "language"},
				answer:   "Search providers by type, city and spoken language. Verified providers carry a badge and every profile lists fees, hours and reviews.",
			},
			{
				keywords: []string{"review", "rating"},
				answer:   "After a completed appointment you can leave one review with a rating from 1 to 5. The provider's rating is the average of all reviews.",
			},
		},
		fallback: "I can help with bookings, cancellations, payments, your wallet and promo codes. For anything medical please contact your provider directly.",
	}
}

func (f *FAQResponder) Reply(_ context.Context, _ []models.ChatMessage, text string) (string, error) {
	q := strings.ToLower(text)
	for _, e := range f.entries {
		for _, kw := range e.keywords {
			if strings.Contains(q, kw) {
				return e.answer, nil
			}
		}
	}
	return f.fallback, nil
}
