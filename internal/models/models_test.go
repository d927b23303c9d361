package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	role, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("superuser")
	assert.Error(t, err)

	vt, err := ParseVisitType("HOME")
	require.NoError(t, err)
	assert.Equal(t, VisitHome, vt)

	_, err = ParseVisitType("drive-through")
	assert.Error(t, err)

	_, err = ParseDiscountType("bogo")
	assert.Error(t, err)

	st, err := ParseAppointmentStatus("rescheduled")
	require.NoError(t, err)
	assert.True(t, st.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
}

func TestParseWeekdaysOrdersAndDedupes(t *testing.T) {
	days, err := ParseWeekdays([]string{"friday", "Monday", "friday"})
	require.NoError(t, err)
	assert.Equal(t, Weekdays{Monday, Friday}, days)
	assert.True(t, days.Contains(Friday))
	assert.False(t, days.Contains(Sunday))

	_, err = ParseWeekdays([]string{"funday"})
	assert.Error(t, err)
}

func TestParseLanguagesKeepsOrder(t *testing.T) {
	langs, err := ParseLanguages([]string{"german", "english", "German"})
	require.NoError(t, err)
	assert.Equal(t, []string{"german", "english"}, langs.Strings())

	_, err = ParseLanguages([]string{"klingon"})
	assert.Error(t, err)
}

func TestCalendarHelpers(t *testing.T) {
	minutes, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, minutes)
	assert.Equal(t, "09:30", FormatClock(minutes))

	_, err = ParseClock("25:00")
	assert.Error(t, err)

	d, err := ParseDate("2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, Monday, WeekdayOf(d))
}

func TestPromoHelpers(t *testing.T) {
	max := 2
	p := PromoCode{MaxUses: &max, UsedCount: 1}
	assert.True(t, p.HasRemainingUses())
	p.UsedCount = 2
	assert.False(t, p.HasRemainingUses())
	assert.True(t, PromoCode{}.HasRemainingUses())

	a, b := uuid.New(), uuid.New()
	scoped := PromoCode{ApplicableProviders: []uuid.UUID{a}}
	assert.True(t, scoped.AppliesTo(a))
	assert.False(t, scoped.AppliesTo(b))
	assert.True(t, PromoCode{}.AppliesTo(b))
}

func TestSlotBookable(t *testing.T) {
	assert.True(t, TimeSlot{}.Bookable())
	assert.False(t, TimeSlot{Booked: true}.Bookable())
	assert.False(t, TimeSlot{Blocked: true}.Bookable())
}
