package service

import (
	"context"
	"errors"
	"gym-billing-reconciler/internal/client"
	"gym-billing-reconciler/internal/model"
	"gym-billing-reconciler/internal/repository"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "whsec_test_secret"

type fakeStripeClient struct {
	mu              sync.Mutex
	sessions        map[string][]client.CheckoutSessionSummary
	customers       map[string]map[string]string
	listErr         error
	listCalls       int
	onList          func()
	updatedMetadata map[string]map[string]string
}

func newFakeStripeClient() *fakeStripeClient {
	return &fakeStripeClient{
		sessions:        map[string][]client.CheckoutSessionSummary{},
		customers:       map[string]map[string]string{},
		updatedMetadata: map[string]map[string]string{},
	}
}

func (f *fakeStripeClient) ListCheckoutSessions(ctx context.Context, customerID string, limit int) ([]client.CheckoutSessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.onList != nil {
		f.onList()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	sessions := f.sessions[customerID]
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (f *fakeStripeClient) GetCustomerMetadata(ctx context.Context, customerID string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[customerID], nil
}

func (f *fakeStripeClient) UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedMetadata[customerID] = metadata
	return nil
}

type notification struct {
	template string
	params   map[string]string
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []notification
	err   error
	panic bool
}

func (n *fakeNotifier) Notify(ctx context.Context, template string, params map[string]string) error {
	if n.panic {
		panic("notifier exploded")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification{template: template, params: params})
	return nil
}

func (n *fakeNotifier) templates() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.template)
	}
	return out
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, client.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

type testEnv struct {
	db          *gorm.DB
	svc         WebhookService
	stripe      *fakeStripeClient
	notifier    *fakeNotifier
	userRepo    repository.UserRepository
	memberRepo  repository.MembershipRepository
	orderRepo   repository.OrderRepository
	bookingRepo repository.BookingRepository
	loyaltyRepo repository.LoyaltyRepository
	eventRepo   repository.WebhookEventRepository
}

type envOption func(*IntakeConfig, *WebhookOptions)

func withUntypedAsBooking(enabled bool) envOption {
	return func(_ *IntakeConfig, o *WebhookOptions) { o.UntypedPaymentAsBooking = enabled }
}

func withIntake(fn func(*IntakeConfig)) envOption {
	return func(c *IntakeConfig, _ *WebhookOptions) { fn(c) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db := newTestDB(t)
	intakeCfg := IntakeConfig{WebhookSecret: testSecret, DevSentinel: "dev_bypass"}
	webhookOpts := WebhookOptions{SessionLookupLimit: 10, UntypedPaymentAsBooking: true}
	for _, opt := range opts {
		opt(&intakeCfg, &webhookOpts)
	}

	plans, err := NewPlanResolver(nil)
	require.NoError(t, err)

	env := &testEnv{
		db:          db,
		stripe:      newFakeStripeClient(),
		notifier:    &fakeNotifier{},
		userRepo:    repository.NewUserRepository(db),
		memberRepo:  repository.NewMembershipRepository(db),
		orderRepo:   repository.NewOrderRepository(db),
		bookingRepo: repository.NewBookingRepository(db),
		loyaltyRepo: repository.NewLoyaltyRepository(db),
		eventRepo:   repository.NewWebhookEventRepository(db),
	}
	log := zap.NewNop()
	env.svc = NewWebhookService(
		NewEventIntake(intakeCfg, log),
		NewLedger(env.eventRepo, 2*time.Minute),
		env.stripe,
		env.userRepo,
		env.memberRepo,
		env.orderRepo,
		env.bookingRepo,
		env.loyaltyRepo,
		env.notifier,
		NewEffectDispatcher(log),
		plans,
		webhookOpts,
		log,
	)

	return env
}

func signedHeaders(t *testing.T, payload []byte) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(SignatureHeader, signed.Header)
	return h
}

// deliver sends a correctly signed payload through the full pipeline.
func (e *testEnv) deliver(t *testing.T, payload string) Outcome {
	t.Helper()
	outcome, err := e.svc.HandleWebhook(context.Background(), signedHeaders(t, []byte(payload)), []byte(payload))
	require.NoError(t, err)
	return outcome
}

func (e *testEnv) seedUser(t *testing.T, id, clerkID string) *model.User {
	t.Helper()
	user, err := e.userRepo.Upsert(context.Background(), &model.User{
		ID:      id,
		ClerkID: clerkID,
		Email:   clerkID + "@example.com",
		Name:    "Member " + clerkID,
		Role:    "member",
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(m).Count(&n).Error)
	return n
}

var errBoom = errors.New("boom")
