package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxstreampro/client/internal/apiclient"
	"fxstreampro/client/internal/enrollment/domain"
	sessiondomain "fxstreampro/client/internal/session/domain"
	"fxstreampro/client/internal/session/repository"
	sessionservice "fxstreampro/client/internal/session/service"
)

type hookRecorder struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
}

func (h *hookRecorder) hook(ctx context.Context, o domain.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, o)
}

func (h *hookRecorder) all() []domain.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Outcome(nil), h.outcomes...)
}

type harness struct {
	requests atomic.Int32
	session  *sessionservice.Manager
	store    *repository.MemoryStore
	hooks    *hookRecorder
	action   *Action
}

// newHarness wires an Action to a backend that answers every enroll request with handler.
func newHarness(t *testing.T, handler http.HandlerFunc) *harness {
	t.Helper()
	h := &harness{
		store: repository.NewMemoryStore(),
		hooks: &hookRecorder{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	h.session = sessionservice.NewManager(h.store)
	api, err := apiclient.New(srv.URL, apiclient.WithTokenSource(h.session))
	require.NoError(t, err)
	h.action = NewAction(api, h.session, nil, h.hooks.hook)
	return h
}

func (h *harness) signIn(t *testing.T, token string, profile *sessiondomain.Profile) {
	t.Helper()
	require.NoError(t, h.session.Begin(context.Background(), token, sessiondomain.RoleUser, profile))
}

func ok(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"message":"Enrolled"}`))
}

func requireReason(t *testing.T, err error, reason ErrorReason) *Error {
	t.Helper()
	var eerr *Error
	require.True(t, errors.As(err, &eerr), "error %v is not an enrollment error", err)
	assert.Equal(t, reason, eerr.Reason)
	return eerr
}

func TestEnroll_SendsOneRequest(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/batches/enroll/u1/42", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"userId": "u1"}, body)
		ok(w, r)
	})
	h.signIn(t, "tok", &sessiondomain.Profile{ID: "u1"})

	res, err := h.action.Enroll(context.Background(), "42", "Forex Basics")
	require.NoError(t, err)
	h.action.Wait()

	assert.Equal(t, "You are successfully enrolled in Forex Basics!", res.Message)
	assert.Equal(t, domain.StatusEnrolled, res.Intent.Status)
	assert.Equal(t, int32(1), h.requests.Load())
	assert.True(t, h.action.IsEnrolled("42"))
	assert.False(t, h.action.InFlight("42"))
	assert.Equal(t, []string{"42"}, h.session.EnrolledBatchIDs())

	outcomes := h.hooks.all()
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Succeeded())
}

func TestEnroll_ConcurrentActivationsIssueOneRequest(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{}, 1)
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		<-release
		ok(w, r)
	})
	h.signIn(t, "tok", &sessiondomain.Profile{ID: "u1"})

	type result struct {
		res *Result
		err error
	}
	first := make(chan result, 1)
	go func() {
		res, err := h.action.Enroll(context.Background(), "42", "Forex Basics")
		first <- result{res, err}
	}()

	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("first enroll request never arrived")
	}
	assert.True(t, h.action.InFlight("42"))
	assert.False(t, h.action.Enabled("42"))

	_, err := h.action.Enroll(context.Background(), "42", "Forex Basics")
	requireReason(t, err, REASON_IN_FLIGHT)

	close(release)
	got := <-first
	require.NoError(t, got.err)
	h.action.Wait()

	assert.Equal(t, int32(1), h.requests.Load())
	assert.Len(t, h.hooks.all(), 1)
	assert.False(t, h.action.InFlight("42"))
}

func TestEnroll_OtherBatchNotBlockedByInFlight(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/batches/enroll/u1/42" {
			<-release
		}
		ok(w, r)
	})
	h.signIn(t, "tok", &sessiondomain.Profile{ID: "u1"})

	done := make(chan error, 1)
	go func() {
		_, err := h.action.Enroll(context.Background(), "42", "A")
		done <- err
	}()
	require.Eventually(t, func() bool { return h.action.InFlight("42") }, 5*time.Second, 5*time.Millisecond)

	_, err := h.action.Enroll(context.Background(), "43", "B")
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)
	h.action.Wait()
	assert.Equal(t, int32(2), h.requests.Load())
}

func TestEnroll_AfterSuccessNeverCallsAgain(t *testing.T) {
	h := newHarness(t, ok)
	h.signIn(t, "tok", &sessiondomain.Profile{ID: "u1"})

	_, err := h.action.Enroll(context.Background(), "42", "Forex Basics")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = h.action.Enroll(context.Background(), "42", "Forex Basics")
		eerr := requireReason(t, err, REASON_ALREADY_ENROLLED)
		assert.Equal(t, MsgAlreadyEnrolled, eerr.Message)
	}
	h.action.Wait()
	assert.Equal(t, int32(1), h.requests.Load())
	assert.Len(t, h.hooks.all(), 1)

	// The enrollment outlives the action: a fresh process rehydrates it from the store.
	fresh := sessionservice.NewManager(h.store)
	require.NoError(t, fresh.Rehydrate(context.Background()))
	again := NewAction(nil, fresh, nil)
	_, err = again.Enroll(context.Background(), "42", "Forex Basics")
	requireReason(t, err, REASON_ALREADY_ENROLLED)
}

func TestEnroll_EnrolledStateIsPerUser(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		ok(w, r)
	})
	ctx := context.Background()
	h.signIn(t, "tok-1", &sessiondomain.Profile{ID: "u1"})
	_, err := h.action.Enroll(ctx, "42", "Forex Basics")
	require.NoError(t, err)

	require.NoError(t, h.session.Logout(ctx))
	assert.False(t, h.action.IsEnrolled("42"))

	h.signIn(t, "tok-2", &sessiondomain.Profile{ID: "u2"})
	assert.False(t, h.action.IsEnrolled("42"))
	assert.True(t, h.action.Enabled("42"))
	_, err = h.action.Enroll(ctx, "42", "Forex Basics")
	require.NoError(t, err)
	h.action.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/api/batches/enroll/u1/42", "/api/batches/enroll/u2/42"}, paths)
}

func TestAction_ResetForgetsLocalEnrollments(t *testing.T) {
	h := newHarness(t, ok)
	ctx := context.Background()
	h.signIn(t, "tok", &sessiondomain.Profile{ID: "u1"})
	_, err := h.action.Enroll(ctx, "42", "Forex Basics")
	require.NoError(t, err)

	// The profile still lists 42, so only the local set is forgotten.
	h.action.Reset()
	assert.True(t, h.action.IsEnrolled("42"))

	require.NoError(t, h.session.Logout(ctx))
	h.signIn(t, "tok", &sessiondomain.Profile{ID: "u1"})
	h.action.Reset()
	assert.False(t, h.action.IsEnrolled("42"))
	h.action.Wait()
}

func TestEnroll_ServerRejectionKeepsState(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"Batch full"}`))
	})
	h.signIn(t, "tok", &sessiondomain.Profile{ID: "u1"})

	_, err := h.action.Enroll(context.Background(), "42", "Forex Basics")
	eerr := requireReason(t, err, REASON_ENROLLMENT_REJECTED)
	assert.Equal(t, "Batch full", eerr.Error())
	assert.False(t, h.action.IsEnrolled("42"))
	assert.False(t, h.action.InFlight("42"))
	assert.Empty(t, h.session.EnrolledBatchIDs())

	h.action.Wait()
	outcomes := h.hooks.all()
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Succeeded())
	assert.Equal(t, domain.StatusFailed, outcomes[0].Intent.Status)
	assert.Equal(t, "Batch full", outcomes[0].Message)

	// Not enrolled, so a retry is a fresh request.
	_, err = h.action.Enroll(context.Background(), "42", "Forex Basics")
	requireReason(t, err, REASON_ENROLLMENT_REJECTED)
	assert.Equal(t, int32(2), h.requests.Load())
}

func TestEnroll_RejectionWithoutMessageUsesFallback(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	h.signIn(t, "tok", &sessiondomain.Profile{ID: "u1"})

	_, err := h.action.Enroll(context.Background(), "42", "Forex Basics")
	eerr := requireReason(t, err, REASON_ENROLLMENT_REJECTED)
	assert.Equal(t, MsgEnrollmentFailed, eerr.Message)
}

func TestEnroll_TransportFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	session := sessionservice.NewManager(store)
	require.NoError(t, session.Begin(context.Background(), "tok", sessiondomain.RoleUser, &sessiondomain.Profile{ID: "u1"}))
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	api, err := apiclient.New(srv.URL, apiclient.WithTokenSource(session))
	require.NoError(t, err)
	hooks := &hookRecorder{}
	action := NewAction(api, session, nil, hooks.hook)

	_, err = action.Enroll(context.Background(), "42", "Forex Basics")
	eerr := requireReason(t, err, REASON_REQUEST_FAILED)
	assert.Equal(t, MsgSomethingWrong, eerr.Message)
	assert.False(t, action.IsEnrolled("42"))
	action.Wait()
	assert.Len(t, hooks.all(), 1)
}

func TestEnroll_Preconditions(t *testing.T) {
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	testCases := []struct {
		name    string
		setup   func(t *testing.T, h *harness)
		reason  ErrorReason
		message string
	}{
		{
			name:    "signed out",
			setup:   func(t *testing.T, h *harness) {},
			reason:  REASON_NOT_LOGGED_IN,
			message: MsgLogInToEnroll,
		},
		{
			name: "already enrolled per profile",
			setup: func(t *testing.T, h *harness) {
				h.signIn(t, "tok", &sessiondomain.Profile{ID: "u1", EnrolledBatches: []string{"42"}})
			},
			reason:  REASON_ALREADY_ENROLLED,
			message: MsgAlreadyEnrolled,
		},
		{
			name: "token expired",
			setup: func(t *testing.T, h *harness) {
				h.signIn(t, expired, &sessiondomain.Profile{ID: "u1"})
			},
			reason:  REASON_UNAUTHORIZED,
			message: MsgUnauthorized,
		},
		{
			name: "enrolled checked before token",
			setup: func(t *testing.T, h *harness) {
				h.signIn(t, expired, &sessiondomain.Profile{ID: "u1", EnrolledBatches: []string{"42"}})
			},
			reason:  REASON_ALREADY_ENROLLED,
			message: MsgAlreadyEnrolled,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, ok)
			tc.setup(t, h)

			_, err := h.action.Enroll(context.Background(), "42", "Forex Basics")
			eerr := requireReason(t, err, tc.reason)
			assert.Equal(t, tc.message, eerr.Message)
			assert.True(t, eerr.Precondition())
			h.action.Wait()
			assert.Zero(t, h.requests.Load())
			assert.Empty(t, h.hooks.all())
		})
	}
}

func TestEnroll_HookPanicIsContained(t *testing.T) {
	h := newHarness(t, ok)
	h.signIn(t, "tok", &sessiondomain.Profile{ID: "u1"})
	recorder := &hookRecorder{}
	h.action.hooks = []domain.AfterSettleHook{
		func(ctx context.Context, o domain.Outcome) { panic("boom") },
		recorder.hook,
	}

	res, err := h.action.Enroll(context.Background(), "42", "Forex Basics")
	require.NoError(t, err)
	h.action.Wait()
	assert.NotNil(t, res)
	assert.Len(t, recorder.all(), 1)
}

func TestEnroll_HookDoesNotBlockResult(t *testing.T) {
	h := newHarness(t, ok)
	h.signIn(t, "tok", &sessiondomain.Profile{ID: "u1"})
	unblock := make(chan struct{})
	h.action.hooks = []domain.AfterSettleHook{
		func(ctx context.Context, o domain.Outcome) { <-unblock },
	}

	done := make(chan struct{})
	go func() {
		_, _ = h.action.Enroll(context.Background(), "42", "Forex Basics")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Enroll waited for its hook")
	}
	close(unblock)
	h.action.Wait()
}
