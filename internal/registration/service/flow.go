// Package service runs the signup and OTP verification flow against the platform API.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"fxstreampro/client/internal/apiclient"
	regdomain "fxstreampro/client/internal/registration/domain"
	sessiondomain "fxstreampro/client/internal/session/domain"
	"fxstreampro/client/internal/telemetry"
	telemetrydomain "fxstreampro/client/internal/telemetry/domain"
)

// API paths used by the flow.
const (
	PathRegister  = "/api/auth/register"
	PathVerifyOTP = "/api/auth/verify-otp"
	PathUpload    = "/api/upload/image"
)

// Landings returned to the caller after a state change.
const (
	LandingSignup    = "/signup"
	LandingVerifyOTP = "/verify-otp"
	LandingDashboard = "/dashboard"
	LandingAdmin     = "/admin"
)

// User-facing messages.
const (
	MsgRegistered          = "Registered successfully! Enter the OTP sent to your email."
	MsgRegistrationFailed  = "Registration failed"
	MsgNoPendingEmail      = "No email found for OTP verification. Please register first."
	MsgOTPRequired         = "Please enter the OTP."
	MsgInvalidOTP          = "Invalid OTP. Please try again."
	MsgVerificationFailed  = "OTP verification failed. Please try again."
	MsgVerified            = "OTP verified! You are now logged in."
	MsgSessionNotSaved     = "Could not save your session. Please try again."
	MsgAlreadyVerified     = "You are already verified. Please log in."
	msgVariantMismatchTmpl = "This signup uses the %s form."
)

// API is the subset of the authenticated client the flow needs.
type API interface {
	PostJSON(ctx context.Context, path string, body, out any) error
	Upload(ctx context.Context, path, field, filename string, content io.Reader, out any) error
}

// Sessions is the subset of the session context the flow needs.
type Sessions interface {
	SetPendingEmail(ctx context.Context, email string) error
	PendingEmail(ctx context.Context) (string, bool, error)
	ClearPendingEmail(ctx context.Context) error
	Begin(ctx context.Context, token string, role sessiondomain.Role, profile *sessiondomain.Profile) error
}

// SubmitResult is returned when the server accepts a registration.
type SubmitResult struct {
	Email   string
	Message string
	Landing string
}

// VerifyResult is returned when the server accepts an OTP.
type VerifyResult struct {
	Role    sessiondomain.Role
	UserID  string
	Message string
	Landing string
}

type registerResponse struct {
	Message string `json:"message"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type verifyResponse struct {
	Token string                 `json:"token"`
	User  *sessiondomain.Profile `json:"user"`
}

type basicPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type extendedPayload struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	AadharCardNo string `json:"aadharCardNo"`
	PanCardNo    string `json:"panCardNo"`
	Address      string `json:"address"`
	AadharImgURL string `json:"aadharImgUrl"`
	PanImgURL    string `json:"panImgUrl"`
}

// Flow is one signup variant's registration state machine:
// CollectingProfile -> AwaitingOtp -> Verified.
type Flow struct {
	api      API
	sessions Sessions
	events   telemetry.EventEmitter
	variant  regdomain.Variant

	mu    sync.Mutex
	state regdomain.State
}

// NewFlow returns a flow for variant in CollectingProfile. events may be nil.
func NewFlow(variant regdomain.Variant, api API, sessions Sessions, events telemetry.EventEmitter) *Flow {
	return &Flow{
		api:      api,
		sessions: sessions,
		events:   events,
		variant:  variant,
		state:    regdomain.StateCollectingProfile,
	}
}

// Variant returns the signup variant this flow runs.
func (f *Flow) Variant() regdomain.Variant {
	return f.variant
}

// State returns the current state.
func (f *Flow) State() regdomain.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) setState(s regdomain.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// Reset returns the flow to CollectingProfile. Called on logout so a new signup can start.
func (f *Flow) Reset() {
	f.setState(regdomain.StateCollectingProfile)
}

// Resume moves a fresh flow to AwaitingOtp when a pending email survives from an earlier submit.
func (f *Flow) Resume(ctx context.Context) (regdomain.State, error) {
	email, ok, err := f.sessions.PendingEmail(ctx)
	if err != nil {
		return f.State(), err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ok && email != "" && f.state == regdomain.StateCollectingProfile {
		f.state = regdomain.StateAwaitingOTP
	}
	return f.state, nil
}

func (f *Flow) checkSubmit(want regdomain.Variant) error {
	if f.variant != want {
		return NewVariantMismatchError(fmt.Sprintf(msgVariantMismatchTmpl, f.variant))
	}
	if f.State() == regdomain.StateVerified {
		return NewAlreadyVerifiedError(MsgAlreadyVerified)
	}
	return nil
}

// SubmitBasic validates form and registers it. Only the first violated rule is reported and no
// request is made on a violation. On acceptance the email is stored as pending.
func (f *Flow) SubmitBasic(ctx context.Context, form regdomain.BasicForm) (*SubmitResult, error) {
	if err := f.checkSubmit(regdomain.VariantBasic); err != nil {
		return nil, err
	}
	if err := form.Validate(); err != nil {
		return nil, invalidForm(err)
	}
	email := strings.TrimSpace(form.Email)
	payload := basicPayload{
		Name:     strings.TrimSpace(form.Name),
		Email:    email,
		Password: form.Password,
	}
	return f.register(ctx, email, payload)
}

// SubmitExtended validates form, uploads both document images and registers with their URLs.
// The national ID is sent as digits only.
func (f *Flow) SubmitExtended(ctx context.Context, form regdomain.ExtendedForm) (*SubmitResult, error) {
	if err := f.checkSubmit(regdomain.VariantExtended); err != nil {
		return nil, err
	}
	if err := form.Validate(); err != nil {
		return nil, invalidForm(err)
	}
	nationalIDURL, err := f.upload(ctx, form.NationalIDImage, "aadhar")
	if err != nil {
		return nil, err
	}
	taxIDURL, err := f.upload(ctx, form.TaxIDImage, "pan")
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(form.Email)
	payload := extendedPayload{
		FullName:     strings.TrimSpace(form.Name),
		Email:        email,
		Phone:        form.Phone,
		Password:     form.Password,
		AadharCardNo: regdomain.Digits(form.NationalID),
		PanCardNo:    form.TaxID,
		Address:      strings.TrimSpace(form.Address),
		AadharImgURL: nationalIDURL,
		PanImgURL:    taxIDURL,
	}
	return f.register(ctx, email, payload)
}

func (f *Flow) upload(ctx context.Context, doc *regdomain.Document, fallbackName string) (string, error) {
	name := doc.Filename
	if name == "" {
		name = fallbackName
	}
	var out uploadResponse
	if err := f.api.Upload(ctx, PathUpload, "file", name, bytes.NewReader(doc.Content), &out); err != nil {
		return "", NewUploadFailedError(apiclient.MessageOr(err, MsgRegistrationFailed), err)
	}
	if out.URL == "" {
		return "", NewUploadFailedError(MsgRegistrationFailed, errors.New("upload response has no url"))
	}
	return out.URL, nil
}

func (f *Flow) register(ctx context.Context, email string, payload any) (*SubmitResult, error) {
	var out registerResponse
	if err := f.api.PostJSON(ctx, PathRegister, payload, &out); err != nil {
		msg := apiclient.MessageOr(err, MsgRegistrationFailed)
		if apiclient.IsTransport(err) {
			return nil, NewRequestFailedError(msg, err)
		}
		return nil, NewRegistrationRejectedError(msg, err)
	}
	if err := f.sessions.SetPendingEmail(ctx, email); err != nil {
		return nil, NewSessionNotSavedError(MsgSessionNotSaved, err)
	}
	f.setState(regdomain.StateAwaitingOTP)

	event := telemetrydomain.NewActivityEvent(telemetrydomain.EventRegistrationSubmitted)
	event.Variant = string(f.variant)
	telemetry.EmitAsync(f.events, ctx, event)

	msg := out.Message
	if msg == "" {
		msg = MsgRegistered
	}
	return &SubmitResult{Email: email, Message: msg, Landing: LandingVerifyOTP}, nil
}

// VerifyOTP exchanges the stored pending email and otp for a session. Without a pending email
// it returns NO_PENDING_EMAIL with a redirect to the signup start and makes no request.
// On rejection the flow stays in AwaitingOtp and the pending email is kept.
func (f *Flow) VerifyOTP(ctx context.Context, otp string) (*VerifyResult, error) {
	email, ok, err := f.sessions.PendingEmail(ctx)
	if err != nil {
		return nil, NewSessionNotSavedError(MsgSessionNotSaved, err)
	}
	if !ok {
		f.setState(regdomain.StateCollectingProfile)
		return nil, NewNoPendingEmailError(MsgNoPendingEmail, LandingSignup)
	}
	f.mu.Lock()
	if f.state == regdomain.StateCollectingProfile {
		f.state = regdomain.StateAwaitingOTP
	}
	f.mu.Unlock()

	otp = strings.TrimSpace(otp)
	if otp == "" {
		return nil, NewOTPRequiredError(MsgOTPRequired)
	}

	var out verifyResponse
	if err := f.api.PostJSON(ctx, PathVerifyOTP, verifyRequest{Email: email, OTP: otp}, &out); err != nil {
		msg := apiclient.MessageOr(err, MsgInvalidOTP)
		if apiclient.IsTransport(err) {
			return nil, NewRequestFailedError(msg, err)
		}
		return nil, NewOTPRejectedError(msg, err)
	}
	if strings.TrimSpace(out.Token) == "" || out.User == nil {
		return nil, NewVerificationFailedError(MsgVerificationFailed)
	}

	role := sessiondomain.ParseRole(out.User.Role)
	if err := f.sessions.Begin(ctx, out.Token, role, out.User); err != nil {
		return nil, NewSessionNotSavedError(MsgSessionNotSaved, err)
	}
	if err := f.sessions.ClearPendingEmail(ctx); err != nil {
		log.Warn().Err(err).Msg("registration: could not clear pending email")
	}
	f.setState(regdomain.StateVerified)

	event := telemetrydomain.NewActivityEvent(telemetrydomain.EventOTPVerified)
	event.UserID = out.User.UserID()
	event.Role = string(role)
	event.Variant = string(f.variant)
	telemetry.EmitAsync(f.events, ctx, event)

	landing := LandingDashboard
	if role == sessiondomain.RoleAdmin {
		landing = LandingAdmin
	}
	return &VerifyResult{Role: role, UserID: out.User.UserID(), Message: MsgVerified, Landing: landing}, nil
}

func invalidForm(err error) *Error {
	var verr *regdomain.ValidationError
	if errors.As(err, &verr) {
		return NewInvalidFormError(verr.Field, verr.Message, err)
	}
	return NewInvalidFormError("", err.Error(), err)
}
