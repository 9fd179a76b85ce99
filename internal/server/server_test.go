package server

import (
	"context"
	"encoding/json"
	"errors"
	"gym-billing-reconciler/internal/dto"
	authmw "gym-billing-reconciler/internal/middleware"
	"gym-billing-reconciler/internal/model"
	"gym-billing-reconciler/internal/service"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWebhookService struct {
	outcome service.Outcome
	err     error
	body    string
}

func (f *fakeWebhookService) HandleWebhook(ctx context.Context, headers http.Header, body []byte) (service.Outcome, error) {
	f.body = string(body)
	return f.outcome, f.err
}

type fakeAdminService struct {
	failed  []model.WebhookEvent
	limit   int
	flagged []model.Membership
}

func (f *fakeAdminService) ListFailedEvents(ctx context.Context, limit int) ([]model.WebhookEvent, error) {
	f.limit = limit
	return f.failed, nil
}

func (f *fakeAdminService) FixDuplicateMemberships(ctx context.Context) ([]model.Membership, error) {
	return f.flagged, nil
}

func (f *fakeAdminService) UpsertUser(ctx context.Context, user *model.User) (*model.User, error) {
	return user, nil
}

func TestStripeWebhookResponses(t *testing.T) {
	tests := []struct {
		name       string
		outcome    service.Outcome
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "applied", outcome: service.Applied(), wantStatus: http.StatusOK, wantBody: "Success"},
		{name: "skipped", outcome: service.Skipped("already processed"), wantStatus: http.StatusOK, wantBody: "Success"},
		{
			name:       "failed",
			outcome:    service.Failed(errors.New("db down")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Webhook processing failed",
		},
		{
			name:       "rejected signature",
			err:        &service.IntakeError{Status: http.StatusBadRequest, Err: service.ErrInvalidSignature},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Bad Request",
		},
		{
			name:       "missing secret",
			err:        &service.IntakeError{Status: http.StatusInternalServerError, Err: service.ErrMissingWebhookSecret},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			webhooks := &fakeWebhookService{outcome: tt.outcome, err: tt.err}
			srv := NewServer(webhooks, &fakeAdminService{}, "secret", zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			assert.Equal(t, `{"id":"evt_1"}`, webhooks.body)
		})
	}
}

func TestAdminRoutes(t *testing.T) {
	admin := &fakeAdminService{
		failed: []model.WebhookEvent{{EventID: "evt_1", EventType: "invoice.payment_failed", Error: "boom", Attempts: 2}},
	}

	tests := []struct {
		name       string
		token      string
		header     string
		wantStatus int
	}{
		{name: "disabled without token", token: "", header: "anything", wantStatus: http.StatusForbidden},
		{name: "wrong token", token: "secret", header: "nope", wantStatus: http.StatusUnauthorized},
		{name: "missing header", token: "secret", wantStatus: http.StatusUnauthorized},
		{name: "authorized", token: "secret", header: "secret", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&fakeWebhookService{}, admin, tt.token, zap.NewNop())

			req := httptest.NewRequest(http.MethodGet, "/api/admin/webhook-events/failed?limit=5", nil)
			if tt.header != "" {
				req.Header.Set(authmw.AdminTokenHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp dto.FailedEventsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, 1, resp.Count)
			assert.Equal(t, "evt_1", resp.Events[0].EventID)
			assert.Equal(t, 5, admin.limit)
		})
	}
}

func TestAdminRejectsBadLimit(t *testing.T) {
	srv := NewServer(&fakeWebhookService{}, &fakeAdminService{}, "secret", zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/admin/webhook-events/failed?limit=abc", nil)
	req.Header.Set(authmw.AdminTokenHeader, "secret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFixDuplicatesRoute(t *testing.T) {
	admin := &fakeAdminService{flagged: []model.Membership{{ID: "m-2", UserID: "u-1", StripeSubscriptionID: "sub_2"}}}
	srv := NewServer(&fakeWebhookService{}, admin, "secret", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/memberships/fix-duplicates", nil)
	req.Header.Set(authmw.AdminTokenHeader, "secret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.FixDuplicatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "sub_2", resp.Flagged[0].SubscriptionID)
}

func TestHealth(t *testing.T) {
	srv := NewServer(&fakeWebhookService{}, &fakeAdminService{}, "", zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
