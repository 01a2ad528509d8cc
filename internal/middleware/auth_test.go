package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func callerEcho() (http.Handler, *string) {
	var caller string
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}), &caller
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	next, caller := callerEcho()
	mw := NewAuthMiddleware(testSecret, nil, nil)

	token, err := IssueToken(testSecret, "wallet-1", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/services", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if *caller != "wallet-1" {
		t.Fatalf("caller: %s", *caller)
	}
}

func TestAuthMiddleware_SubjectFallback(t *testing.T) {
	next, caller := callerEcho()
	mw := NewAuthMiddleware(testSecret, nil, nil)

	token, err := IssueToken(testSecret, "", jwt.RegisteredClaims{
		Subject:   "subject-wallet",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/services", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, req)

	if *caller != "subject-wallet" {
		t.Fatalf("caller: %s", *caller)
	}
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	next, _ := callerEcho()
	mw := NewAuthMiddleware(testSecret, nil, nil)

	cases := map[string]func(r *http.Request){
		"missing header": func(r *http.Request) {},
		"wrong scheme":   func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
		"garbage token":  func(r *http.Request) { r.Header.Set("Authorization", "Bearer not-a-jwt") },
		"wrong secret": func(r *http.Request) {
			token, _ := IssueToken("other-secret", "wallet-1", jwt.RegisteredClaims{})
			r.Header.Set("Authorization", "Bearer "+token)
		},
		"expired": func(r *http.Request) {
			token, _ := IssueToken(testSecret, "wallet-1", jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			})
			r.Header.Set("Authorization", "Bearer "+token)
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/services", nil)
			mutate(req)
			rec := httptest.NewRecorder()
			mw.Handler(next).ServeHTTP(rec, req)
			if rec.Code != http.StatusForbidden && rec.Code != http.StatusUnauthorized {
				t.Fatalf("accepted bad token: %d", rec.Code)
			}
		})
	}
}

func TestAuthMiddleware_SkipPaths(t *testing.T) {
	next, _ := callerEcho()
	mw := NewAuthMiddleware(testSecret, nil, []string{"/health"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("skip path rejected: %d", rec.Code)
	}
}

func TestAuthMiddleware_DevModeHeader(t *testing.T) {
	next, caller := callerEcho()
	mw := NewAuthMiddleware("", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/services", nil)
	req.Header.Set("X-Caller", "dev-wallet")
	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, req)
	if *caller != "dev-wallet" {
		t.Fatalf("caller: %s", *caller)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := rl.Handler(next)

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/services", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("burst rejected: %v", statuses)
	}
	if statuses[3] != http.StatusTooManyRequests {
		t.Fatalf("limit not enforced: %v", statuses)
	}

	// A different client has its own allowance.
	req := httptest.NewRequest(http.MethodGet, "/v1/services", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("independent client throttled: %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	RequestID(next).ServeHTTP(rec, req)
	if seen == "" {
		t.Fatal("request id not assigned")
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Fatal("request id not echoed on response")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "client-chosen")
	rec = httptest.NewRecorder()
	RequestID(next).ServeHTTP(rec, req)
	if seen != "client-chosen" {
		t.Fatalf("client request id not honored: %s", seen)
	}
}
