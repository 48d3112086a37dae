package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, bool) {
	return string(s), s != ""
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "/api", "ftp://host", "::"} {
		_, err := New(u)
		assert.Error(t, err, "New(%q)", u)
	}
}

func TestPostJSON_AttachesBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/verify-otp", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "123456", body["otp"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"t2"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", WithTokenSource(staticToken("tok-1")))
	require.NoError(t, err)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, c.PostJSON(context.Background(), "/api/auth/verify-otp", map[string]string{"otp": "123456"}, &out))
	assert.Equal(t, "t2", out.Token)
}

func TestGetJSON_OmitsAuthorizationWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		assert.False(t, present, "Authorization header should be omitted")
		assert.Empty(t, r.Header.Get("Content-Type"), "GET without body should not set Content-Type")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	for _, ts := range []TokenSource{nil, staticToken("")} {
		c, err := New(srv.URL, WithTokenSource(ts))
		require.NoError(t, err)
		var out []any
		require.NoError(t, c.GetJSON(context.Background(), "api/public-batches", &out))
	}
}

func TestUpload_MultipartNotJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		assert.True(t, strings.HasPrefix(ct, "multipart/form-data; boundary="), "Content-Type = %q", ct)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "aadhaar.png", hdr.Filename)
		assert.Equal(t, "PNGDATA", string(data))

		w.Write([]byte(`{"url":"https://cdn.test/aadhaar.png"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithTokenSource(staticToken("tok")))
	require.NoError(t, err)

	var out struct {
		URL string `json:"url"`
	}
	require.NoError(t, c.Upload(context.Background(), "/api/upload/image", "file", "aadhaar.png", strings.NewReader("PNGDATA"), &out))
	assert.Equal(t, "https://cdn.test/aadhaar.png", out.URL)
}

func TestDo_ServerRejectionCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"Batch full"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	err = c.PostJSON(context.Background(), "/api/batches/enroll/u1/b1", map[string]string{"userId": "u1"}, nil)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Batch full", apiErr.Message)
	assert.Equal(t, "Batch full", MessageOr(err, "Enrollment failed."))
	assert.False(t, IsTransport(err))
	assert.Equal(t, http.StatusConflict, StatusCode(err))
}

func TestDo_ServerRejectionErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Email already registered"}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	err := c.PostJSON(context.Background(), "/api/auth/register", struct{}{}, nil)
	assert.Equal(t, "Email already registered", MessageOr(err, "Registration failed"))
}

func TestDo_ServerRejectionWithoutMessageUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	err := c.GetJSON(context.Background(), "/api/public-batches", nil)
	require.Error(t, err)
	assert.Equal(t, "fallback", MessageOr(err, "fallback"))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, _ := New(base)
	err := c.GetJSON(context.Background(), "/api/public-batches", nil)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, 0, StatusCode(err))
	assert.Equal(t, "Something went wrong. Try again.", MessageOr(err, "Something went wrong. Try again."))
}

func TestDo_NoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_ = c.PostJSON(context.Background(), "/api/auth/register", struct{}{}, nil)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_MalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	var out map[string]any
	err := c.GetJSON(context.Background(), "/x", &out)
	require.Error(t, err)
	assert.Equal(t, http.StatusOK, StatusCode(err))
}

func TestDo_EmptySuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	var out map[string]any
	assert.NoError(t, c.PostJSON(context.Background(), "/x", nil, &out))
}

func TestWithTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c, _ := New(srv.URL, WithTimeout(50*time.Millisecond))
	err := c.GetJSON(context.Background(), "/slow", nil)
	assert.True(t, IsTransport(err))
}

func TestError_Messages(t *testing.T) {
	assert.Contains(t, (&Error{Cause: errors.New("refused")}).Error(), "refused")
	assert.Contains(t, (&Error{StatusCode: 409, Message: "Batch full"}).Error(), "Batch full")
	assert.Contains(t, (&Error{StatusCode: 500}).Error(), "500")
	assert.Equal(t, "fb", MessageOr(errors.New("plain"), "fb"))
	assert.False(t, IsTransport(nil))
}
