package service

type ErrorReason string

const (
	REASON_INVALID_FORM          ErrorReason = "INVALID_FORM"
	REASON_VARIANT_MISMATCH      ErrorReason = "VARIANT_MISMATCH"
	REASON_ALREADY_VERIFIED      ErrorReason = "ALREADY_VERIFIED"
	REASON_UPLOAD_FAILED         ErrorReason = "UPLOAD_FAILED"
	REASON_REQUEST_FAILED        ErrorReason = "REQUEST_FAILED"
	REASON_REGISTRATION_REJECTED ErrorReason = "REGISTRATION_REJECTED"
	REASON_NO_PENDING_EMAIL      ErrorReason = "NO_PENDING_EMAIL"
	REASON_OTP_REQUIRED          ErrorReason = "OTP_REQUIRED"
	REASON_OTP_REJECTED          ErrorReason = "OTP_REJECTED"
	REASON_VERIFICATION_FAILED   ErrorReason = "VERIFICATION_FAILED"
	REASON_SESSION_NOT_SAVED     ErrorReason = "SESSION_NOT_SAVED"
)

// Error is returned by every Flow operation. Message is safe to show the user as is.
type Error struct {
	Reason  ErrorReason
	Message string
	// Field is the first offending form field for INVALID_FORM.
	Field string
	// Redirect is where the caller should send the user, when set.
	Redirect string
	Cause    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newRegistrationError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewInvalidFormError(field, message string, cause error) *Error {
	e := newRegistrationError(REASON_INVALID_FORM, message, cause)
	e.Field = field
	return e
}

func NewVariantMismatchError(message string) *Error {
	return newRegistrationError(REASON_VARIANT_MISMATCH, message, nil)
}

func NewAlreadyVerifiedError(message string) *Error {
	return newRegistrationError(REASON_ALREADY_VERIFIED, message, nil)
}

func NewUploadFailedError(message string, cause error) *Error {
	return newRegistrationError(REASON_UPLOAD_FAILED, message, cause)
}

func NewRequestFailedError(message string, cause error) *Error {
	return newRegistrationError(REASON_REQUEST_FAILED, message, cause)
}

func NewRegistrationRejectedError(message string, cause error) *Error {
	return newRegistrationError(REASON_REGISTRATION_REJECTED, message, cause)
}

func NewNoPendingEmailError(message, redirect string) *Error {
	e := newRegistrationError(REASON_NO_PENDING_EMAIL, message, nil)
	e.Redirect = redirect
	return e
}

func NewOTPRequiredError(message string) *Error {
	return newRegistrationError(REASON_OTP_REQUIRED, message, nil)
}

func NewOTPRejectedError(message string, cause error) *Error {
	return newRegistrationError(REASON_OTP_REJECTED, message, cause)
}

func NewVerificationFailedError(message string) *Error {
	return newRegistrationError(REASON_VERIFICATION_FAILED, message, nil)
}

func NewSessionNotSavedError(message string, cause error) *Error {
	return newRegistrationError(REASON_SESSION_NOT_SAVED, message, cause)
}
