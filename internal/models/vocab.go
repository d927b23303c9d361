package models

import (
	"fmt"
	"strings"
)

// Weekday names as stored in a provider's available days.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var weekOrder = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func (d Weekday) Valid() bool {
	for _, w := range weekOrder {
		if w == d {
			return true
		}
	}
	return false
}

// Language is a spoken language a provider can list.
type Language string

const (
	English   Language = "english"
	Hungarian Language = "hungarian"
	German    Language = "german"
	French    Language = "french"
)

func (l Language) Valid() bool {
	switch l {
	case English, Hungarian, German, French:
		return true
	}
	return false
}

// Weekdays is an ordered, duplicate-free set of days.
type Weekdays []Weekday

// ParseWeekdays validates each entry and returns the days in calendar order.
func ParseWeekdays(values []string) (Weekdays, error) {
	seen := make(map[Weekday]bool, len(values))
	for _, v := range values {
		d := Weekday(strings.ToLower(strings.TrimSpace(v)))
		if !d.Valid() {
			return nil, fmt.Errorf("unknown weekday %q", v)
		}
		seen[d] = true
	}
	out := make(Weekdays, 0, len(seen))
	for _, d := range weekOrder {
		if seen[d] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (w Weekdays) Contains(d Weekday) bool {
	for _, x := range w {
		if x == d {
			return true
		}
	}
	return false
}

func (w Weekdays) Strings() []string {
	out := make([]string, len(w))
	for i, d := range w {
		out[i] = string(d)
	}
	return out
}

// Languages keeps the order the provider listed them, without duplicates.
type Languages []Language

func ParseLanguages(values []string) (Languages, error) {
	out := make(Languages, 0, len(values))
	seen := make(map[Language]bool, len(values))
	for _, v := range values {
		l := Language(strings.ToLower(strings.TrimSpace(v)))
		if !l.Valid() {
			return nil, fmt.Errorf("unknown language %q", v)
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out, nil
}

func (l Languages) Contains(lang Language) bool {
	for _, x := range l {
		if x == lang {
			return true
		}
	}
	return false
}

func (l Languages) Strings() []string {
	out := make([]string, len(l))
	for i, x := range l {
		out[i] = string(x)
	}
	return out
}
