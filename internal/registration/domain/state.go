// Package domain holds the signup forms, their validation and keystroke normalisation.
package domain

import "fmt"

// Variant names one of the two signup flows. They are never merged: each has its own form type.
type Variant string

const (
	// VariantBasic collects name, email, password and terms acceptance.
	VariantBasic Variant = "basic"
	// VariantExtended adds phone, address, national ID, tax ID and two document images.
	VariantExtended Variant = "extended"
)

// ParseVariant returns the Variant for s.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantBasic, VariantExtended:
		return Variant(s), nil
	}
	return "", fmt.Errorf("unknown signup variant %q", s)
}

// State is a position in the registration flow.
type State int

const (
	StateCollectingProfile State = iota
	StateAwaitingOTP
	StateVerified
)

func (s State) String() string {
	switch s {
	case StateCollectingProfile:
		return "CollectingProfile"
	case StateAwaitingOTP:
		return "AwaitingOtp"
	case StateVerified:
		return "Verified"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
