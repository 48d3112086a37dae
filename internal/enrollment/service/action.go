// Package service implements the enroll action: precondition checks, a single enroll request per
// activation, a per-batch in-flight guard and after-settle hooks.
package service

import (
	"context"
	"fmt"
	"net/url"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"

	"fxstreampro/client/internal/apiclient"
	"fxstreampro/client/internal/enrollment/domain"
	"fxstreampro/client/internal/telemetry"
	telemetrydomain "fxstreampro/client/internal/telemetry/domain"
)

// User-facing messages.
const (
	MsgLogInToEnroll    = "Please log in to enroll"
	MsgAlreadyEnrolled  = "You are already enrolled in this course!"
	MsgUnauthorized     = "Unauthorized. Please login again."
	MsgInFlight         = "Enrolling..."
	MsgEnrollmentFailed = "Enrollment failed."
	MsgSomethingWrong   = "Something went wrong. Try again."
	msgEnrolledTemplate = "You are successfully enrolled in %s!"
	enrollPathTemplate  = "/api/batches/enroll/%s/%s"
)

// API is the subset of the authenticated client the action needs.
type API interface {
	PostJSON(ctx context.Context, path string, body, out any) error
}

// Sessions is the subset of the session context the action needs.
type Sessions interface {
	UserID() (string, bool)
	Token(ctx context.Context) (string, bool)
	EnrolledBatchIDs() []string
	RecordEnrollment(ctx context.Context, batchID string) error
}

// Result is returned when the server accepts an enrollment.
type Result struct {
	Intent  domain.Intent
	Message string
}

type enrollRequest struct {
	UserID string `json:"userId"`
}

type enrollResponse struct {
	Message string `json:"message"`
}

// Action enrolls the signed-in user in batches. Safe for concurrent use.
type Action struct {
	api      API
	sessions Sessions
	events   telemetry.EventEmitter
	hooks    []domain.AfterSettleHook

	mu       sync.Mutex
	inFlight map[string]struct{}
	// enrolled holds batches this action enrolled, keyed by enrolledKey(userID, batchID).
	enrolled map[string]struct{}

	hooksWG sync.WaitGroup
}

// NewAction returns an Action. events may be nil. hooks run after every settled request.
func NewAction(api API, sessions Sessions, events telemetry.EventEmitter, hooks ...domain.AfterSettleHook) *Action {
	return &Action{
		api:      api,
		sessions: sessions,
		events:   events,
		hooks:    hooks,
		inFlight: map[string]struct{}{},
		enrolled: map[string]struct{}{},
	}
}

func enrolledKey(userID, batchID string) string {
	return userID + "\x00" + batchID
}

// IsEnrolled reports whether the signed-in user is enrolled in batchID, either by this action or
// per the session profile. Always false when nobody is signed in.
func (a *Action) IsEnrolled(batchID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	userID, ok := a.sessions.UserID()
	if !ok || userID == "" {
		return false
	}
	return a.isEnrolledLocked(userID, batchID)
}

func (a *Action) isEnrolledLocked(userID, batchID string) bool {
	if _, ok := a.enrolled[enrolledKey(userID, batchID)]; ok {
		return true
	}
	for _, id := range a.sessions.EnrolledBatchIDs() {
		if id == batchID {
			return true
		}
	}
	return false
}

// InFlight reports whether an enroll request for batchID has not settled yet.
func (a *Action) InFlight(batchID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.inFlight[batchID]
	return ok
}

// Enabled reports whether activating the action for batchID could issue a request.
func (a *Action) Enabled(batchID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inFlight[batchID]; busy {
		return false
	}
	userID, ok := a.sessions.UserID()
	return !ok || userID == "" || !a.isEnrolledLocked(userID, batchID)
}

// Reset forgets the batches enrolled through this action. Called on logout so the next user
// starts from their own profile.
func (a *Action) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enrolled = map[string]struct{}{}
}

// begin checks the preconditions in order and marks batchID in flight.
func (a *Action) begin(ctx context.Context, batchID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.inFlight[batchID]; ok {
		return "", NewInFlightError(MsgInFlight)
	}
	userID, ok := a.sessions.UserID()
	if !ok || userID == "" {
		return "", NewNotLoggedInError(MsgLogInToEnroll)
	}
	if a.isEnrolledLocked(userID, batchID) {
		return "", NewAlreadyEnrolledError(MsgAlreadyEnrolled)
	}
	if _, ok := a.sessions.Token(ctx); !ok {
		return "", NewUnauthorizedError(MsgUnauthorized)
	}
	a.inFlight[batchID] = struct{}{}
	return userID, nil
}

func (a *Action) finish(userID, batchID string, enrolled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, batchID)
	if enrolled {
		a.enrolled[enrolledKey(userID, batchID)] = struct{}{}
	}
}

// Enroll issues one enroll request for batchID. A refused precondition makes no request and runs
// no hooks. Once the request settles, enrolled state is updated only on success and every hook
// is started, whatever the outcome.
func (a *Action) Enroll(ctx context.Context, batchID, batchName string) (*Result, error) {
	userID, err := a.begin(ctx, batchID)
	if err != nil {
		return nil, err
	}
	intent := domain.NewIntent(userID, batchID, batchName)

	path := fmt.Sprintf(enrollPathTemplate, url.PathEscape(userID), url.PathEscape(batchID))
	var out enrollResponse
	reqErr := a.api.PostJSON(ctx, path, enrollRequest{UserID: userID}, &out)
	a.finish(userID, batchID, reqErr == nil)

	var (
		result *Result
		outErr *Error
	)
	if reqErr != nil {
		intent.Settle(domain.StatusFailed)
		if apiclient.IsTransport(reqErr) {
			outErr = NewRequestFailedError(MsgSomethingWrong, reqErr)
		} else {
			outErr = NewEnrollmentRejectedError(apiclient.MessageOr(reqErr, MsgEnrollmentFailed), reqErr)
		}
		log.Debug().Err(reqErr).Str("batch_id", batchID).Msg("enrollment: request failed")
	} else {
		intent.Settle(domain.StatusEnrolled)
		if err := a.sessions.RecordEnrollment(ctx, batchID); err != nil {
			log.Warn().Err(err).Str("batch_id", batchID).Msg("enrollment: could not persist enrolled batch")
		}
		event := telemetrydomain.NewActivityEvent(telemetrydomain.EventEnrollmentCreated)
		event.UserID = userID
		event.BatchID = batchID
		telemetry.EmitAsync(a.events, ctx, event)

		name := batchName
		if name == "" {
			name = batchID
		}
		result = &Result{Intent: *intent, Message: fmt.Sprintf(msgEnrolledTemplate, name)}
	}

	outcome := domain.Outcome{Intent: *intent}
	if outErr != nil {
		outcome.Err = outErr
		outcome.Message = outErr.Message
	} else {
		outcome.Message = result.Message
	}
	a.settle(ctx, outcome)

	if outErr != nil {
		return nil, outErr
	}
	return result, nil
}

// settle starts every hook on its own goroutine, detached from ctx cancellation.
func (a *Action) settle(ctx context.Context, outcome domain.Outcome) {
	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range a.hooks {
		if hook == nil {
			continue
		}
		a.hooksWG.Add(1)
		go func(h domain.AfterSettleHook) {
			defer a.hooksWG.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("enrollment: after-settle hook panicked")
				}
			}()
			h(hookCtx, outcome)
		}(hook)
	}
}

// Wait blocks until every started hook has returned. Short-lived processes call it before exiting.
func (a *Action) Wait() {
	a.hooksWG.Wait()
}
