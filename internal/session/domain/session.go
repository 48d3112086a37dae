package domain

import (
	"slices"
	"strings"
	"time"
)

// Keys under which session state is persisted. They match what the platform's web client keeps in
// browser storage so a shared store stays readable by both.
const (
	KeyToken        = "token"
	KeyRole         = "role"
	KeyPendingEmail = "emailForOtp"
	KeyProfile      = "fxstreampro_user"
)

// Role is the platform role granted at OTP verification.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a server role string to a Role. Anything other than admin is a regular user.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// Session is the authenticated state created by OTP verification and destroyed by logout.
type Session struct {
	Token     string
	Role      Role
	UserID    string    // empty when neither the profile nor the token names the user
	ExpiresAt time.Time // zero for opaque tokens or tokens without exp
}

// Profile is the user record returned by the verify endpoint, cached alongside the token.
// The backend has returned the ID as both id and _id.
type Profile struct {
	ID              string   `json:"id,omitempty"`
	LegacyID        string   `json:"_id,omitempty"`
	FullName        string   `json:"fullName,omitempty"`
	Email           string   `json:"email,omitempty"`
	Role            string   `json:"role,omitempty"`
	EnrolledBatches []string `json:"enrolledBatches,omitempty"`
}

// UserID returns ID, falling back to LegacyID.
func (p *Profile) UserID() string {
	if p == nil {
		return ""
	}
	if p.ID != "" {
		return p.ID
	}
	return p.LegacyID
}

// HasEnrolled reports whether batchID is in the enrolled set.
func (p *Profile) HasEnrolled(batchID string) bool {
	return p != nil && slices.Contains(p.EnrolledBatches, batchID)
}

// AddEnrollment appends batchID to the enrolled set. Returns false if it was already present.
func (p *Profile) AddEnrollment(batchID string) bool {
	if p.HasEnrolled(batchID) {
		return false
	}
	p.EnrolledBatches = append(p.EnrolledBatches, batchID)
	return true
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.EnrolledBatches = slices.Clone(p.EnrolledBatches)
	return &c
}
