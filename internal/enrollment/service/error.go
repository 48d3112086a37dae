package service

type ErrorReason string

const (
	REASON_NOT_LOGGED_IN       ErrorReason = "NOT_LOGGED_IN"
	REASON_ALREADY_ENROLLED    ErrorReason = "ALREADY_ENROLLED"
	REASON_UNAUTHORIZED        ErrorReason = "UNAUTHORIZED"
	REASON_IN_FLIGHT           ErrorReason = "IN_FLIGHT"
	REASON_REQUEST_FAILED      ErrorReason = "REQUEST_FAILED"
	REASON_ENROLLMENT_REJECTED ErrorReason = "ENROLLMENT_REJECTED"
)

// Error is returned by Enroll. Message is safe to show the user as is.
type Error struct {
	Reason  ErrorReason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Precondition reports whether the action was refused before any request was made.
func (e *Error) Precondition() bool {
	switch e.Reason {
	case REASON_NOT_LOGGED_IN, REASON_ALREADY_ENROLLED, REASON_UNAUTHORIZED, REASON_IN_FLIGHT:
		return true
	}
	return false
}

func newEnrollmentError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewNotLoggedInError(message string) *Error {
	return newEnrollmentError(REASON_NOT_LOGGED_IN, message, nil)
}

func NewAlreadyEnrolledError(message string) *Error {
	return newEnrollmentError(REASON_ALREADY_ENROLLED, message, nil)
}

func NewUnauthorizedError(message string) *Error {
	return newEnrollmentError(REASON_UNAUTHORIZED, message, nil)
}

func NewInFlightError(message string) *Error {
	return newEnrollmentError(REASON_IN_FLIGHT, message, nil)
}

func NewRequestFailedError(message string, cause error) *Error {
	return newEnrollmentError(REASON_REQUEST_FAILED, message, cause)
}

func NewEnrollmentRejectedError(message string, cause error) *Error {
	return newEnrollmentError(REASON_ENROLLMENT_REJECTED, message, cause)
}
