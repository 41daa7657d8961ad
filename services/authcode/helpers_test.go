package authcode

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/ledgersite/services/admins"
	"github.com/tech-arch1tect/ledgersite/services/jwt"
	"github.com/tech-arch1tect/ledgersite/testutils"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequentialEntropy yields codes 100001, 100002, ... from crypto/rand.Int.
func sequentialEntropy(n int) *bytes.Reader {
	buf := make([]byte, 0, n*3)
	for i := 1; i <= n; i++ {
		buf = append(buf, 0, byte(i>>8), byte(i))
	}
	return bytes.NewReader(buf)
}

type testEnv struct {
	db        *gorm.DB
	store     *GormStore
	directory *admins.Directory
	mailer    *testutils.RecordingMailer
	signer    *jwt.Service
	clock     *testClock
	service   *Service
	admin     *admins.Admin
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &admins.Admin{}, &VerificationCode{})

	env := &testEnv{
		db:        db,
		store:     NewGormStore(db),
		directory: admins.NewDirectory(db, nil),
		mailer:    &testutils.RecordingMailer{},
		signer:    jwt.NewService(&cfg.JWT, nil),
		clock:     newTestClock(),
	}

	admin, err := env.directory.EnsureSeed(context.Background(), testutils.TestAdmin.Email, testutils.TestAdmin.Name)
	require.NoError(t, err)
	env.admin = admin

	opts = append([]Option{WithClock(env.clock.Now)}, opts...)
	env.service = NewService(cfg.AuthCode, env.store, env.directory, env.signer, env.mailer, nil, opts...)
	return env
}

func (e *testEnv) codes(t *testing.T, email string) []VerificationCode {
	t.Helper()
	var rows []VerificationCode
	require.NoError(t, e.db.Where("email = ?", email).Order("id").Find(&rows).Error)
	return rows
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CountRecentByEmail(ctx context.Context, email string, since time.Time) (int64, error) {
	args := m.Called(ctx, email, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ReplaceLive(ctx context.Context, code *VerificationCode, now time.Time) (int64, error) {
	args := m.Called(ctx, code, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ConsumeLive(ctx context.Context, email, code string, now time.Time) (*VerificationCode, error) {
	args := m.Called(ctx, email, code, now)
	vc, _ := args.Get(0).(*VerificationCode)
	return vc, args.Error(1)
}

func (m *mockStore) FindAnyMatch(ctx context.Context, email, code string) (*VerificationCode, error) {
	args := m.Called(ctx, email, code)
	vc, _ := args.Get(0).(*VerificationCode)
	return vc, args.Error(1)
}

func (m *mockStore) HasAnyForEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) DeleteStale(ctx context.Context, now, usedBefore time.Time) (int64, error) {
	args := m.Called(ctx, now, usedBefore)
	return args.Get(0).(int64), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) LookupByEmail(ctx context.Context, email string) (*admins.Admin, error) {
	args := m.Called(ctx, email)
	admin, _ := args.Get(0).(*admins.Admin)
	return admin, args.Error(1)
}
