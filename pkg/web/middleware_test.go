package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockVerifier is a mock implementation of auth.Verifier.
type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, tokenString string) (jwt.Token, error) {
	args := m.Called(ctx, tokenString)

	var token jwt.Token
	if args.Get(0) != nil {
		token = args.Get(0).(jwt.Token)
	}
	return token, args.Error(1)
}

func TestAuthMiddleware(t *testing.T) {
	// given
	validToken, err := jwt.NewBuilder().
		Subject("admin-1").
		Issuer("test-issuer").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)

	testCases := []struct {
		name               string
		authHeader         string
		setupMock          func(m *mockVerifier)
		expectedStatusCode int
		shouldCallNext     bool
		expectedSubject    string
	}{
		{
			name:       "Success - valid bearer token",
			authHeader: "Bearer valid-token",
			setupMock: func(m *mockVerifier) {
				m.On("Verify", mock.Anything, "valid-token").Return(validToken, nil)
			},
			expectedStatusCode: http.StatusOK,
			shouldCallNext:     true,
			expectedSubject:    "admin-1",
		},
		{
			name:               "Failure - no auth header",
			setupMock:          func(m *mockVerifier) {},
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "Failure - not a bearer token",
			authHeader:         "Basic some-credentials",
			setupMock:          func(m *mockVerifier) {},
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:       "Failure - verifier returns error",
			authHeader: "Bearer invalid-token",
			setupMock: func(m *mockVerifier) {
				m.On("Verify", mock.Anything, "invalid-token").Return(nil, errors.New("signature is invalid"))
			},
			expectedStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := new(mockVerifier)
			tc.setupMock(verifier)

			nextHandlerCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextHandlerCalled = true
				assert.Equal(t, tc.expectedSubject, GetSubject(r.Context()))
				w.WriteHeader(http.StatusOK)
			})
			handler := AuthMiddleware(verifier)(next)

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rr := httptest.NewRecorder()

			// when
			handler.ServeHTTP(rr, req)

			// then
			assert.Equal(t, tc.expectedStatusCode, rr.Code)
			assert.Equal(t, tc.shouldCallNext, nextHandlerCalled)
			verifier.AssertExpectations(t)
		})
	}
}

func TestRequestIDInjector(t *testing.T) {
	testCases := []struct {
		name     string
		incoming string
	}{
		{name: "generates an id when none is sent"},
		{name: "reuses the incoming id", incoming: "req-42"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			var seenChi, seenOwn string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenChi = middleware.GetReqID(r.Context())
				seenOwn, _ = GetRequestID(r.Context())
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.incoming != "" {
				req.Header.Set(middleware.RequestIDHeader, tc.incoming)
			}
			rr := httptest.NewRecorder()

			// when
			RequestIDInjector(next).ServeHTTP(rr, req)

			// then
			require.NotEmpty(t, seenChi)
			assert.Equal(t, seenChi, seenOwn)
			assert.Equal(t, seenChi, rr.Header().Get(middleware.RequestIDHeader))
			if tc.incoming != "" {
				assert.Equal(t, tc.incoming, seenChi)
			}
		})
	}
}

func TestRecoverer(t *testing.T) {
	// given
	logger := slog.New(slog.DiscardHandler)
	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()

	// when
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// then
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestQueryInt(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	testCases := []struct {
		name     string
		query    string
		expected int
		ok       bool
	}{
		{name: "absent uses default", query: "", expected: 10, ok: true},
		{name: "valid value", query: "size=25", expected: 25, ok: true},
		{name: "out of range", query: "size=500", ok: false},
		{name: "not a number", query: "size=abc", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			req := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
			rr := httptest.NewRecorder()
			// when
			value, ok := QueryInt(req, rr, logger, "size", 10, Between(1, 100))
			// then
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, value)
			} else {
				assert.Equal(t, http.StatusBadRequest, rr.Code)
			}
		})
	}
}
