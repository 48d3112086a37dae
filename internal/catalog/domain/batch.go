// Package domain holds course batches as listed on the public catalog.
package domain

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
)

// Currency is the currency batch prices are quoted in.
const Currency = money.INR

// Mode is how a batch is delivered.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// ParseMode maps a server value to a Mode. ok is false for anything else.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeOnline:
		return ModeOnline, true
	case ModeOffline:
		return ModeOffline, true
	}
	return "", false
}

// Language is the language a batch is taught in.
type Language string

const (
	LanguageEnglish Language = "English"
	LanguageHindi   Language = "Hindi"
	LanguageMarathi Language = "Marathi"
)

// ParseLanguage maps a server value to a Language, ignoring case. ok is false for anything else.
func ParseLanguage(s string) (Language, bool) {
	for _, l := range []Language{LanguageEnglish, LanguageHindi, LanguageMarathi} {
		if strings.EqualFold(strings.TrimSpace(s), string(l)) {
			return l, true
		}
	}
	return "", false
}

// Batch is a read-only course batch. Price is nil when the server sent none.
type Batch struct {
	ID          string
	Name        string
	Description string
	Mode        Mode
	Language    Language
	Price       *money.Money
	StartDate   time.Time
	Duration    string
	Thumbnail   string
}

// Filter narrows a batch list. Zero fields match everything.
type Filter struct {
	// Search matches name or description, ignoring case.
	Search   string
	Language Language
	Mode     Mode
}

// Match reports whether b passes every set criterion.
func (f Filter) Match(b Batch) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(b.Name), q) && !strings.Contains(strings.ToLower(b.Description), q) {
			return false
		}
	}
	if f.Language != "" && b.Language != f.Language {
		return false
	}
	if f.Mode != "" && b.Mode != f.Mode {
		return false
	}
	return true
}

// Apply returns the batches that match f, in order.
func (f Filter) Apply(batches []Batch) []Batch {
	out := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	return out
}
