package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/serenify/server/internal/auth"
	"github.com/serenify/server/internal/http/handlers"
	"github.com/serenify/server/internal/model"
)

type stubRegistrar struct{}

func (stubRegistrar) Signup(context.Context, auth.SignupRequest) error { return nil }
func (stubRegistrar) ResendOTP(context.Context, string) error           { return nil }
func (stubRegistrar) VerifyOTP(context.Context, string, string) (model.PublicAccount, error) {
	return model.PublicAccount{}, nil
}
func (stubRegistrar) Login(context.Context, string, string) (model.PublicAccount, error) {
	return model.PublicAccount{}, nil
}

type nopObserver struct{}

func (nopObserver) Observe(string, string, time.Time) {}

func newTestRouter() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(RouterDeps{
		Auth:       handlers.NewAuthHandler(stubRegistrar{}, nopObserver{}, logger),
		Health:     handlers.NewHealthHandler(nil),
		CORSOrigin: "http://localhost:3000",
		Logger:     logger,
	})
}

func TestRouter_routes(t *testing.T) {
	r := newTestRouter()
	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodPost, "/api/signup", `{}`, http.StatusOK},
		{http.MethodPost, "/api/resend-otp", `{}`, http.StatusOK},
		{http.MethodPost, "/api/verify-otp", `{}`, http.StatusCreated},
		{http.MethodPost, "/api/login", `{}`, http.StatusOK},
		{http.MethodGet, "/api/login", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/metrics", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
		assert.Equal(t, tt.want, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestRouter_corsPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/signup", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
