package authcore_test

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/notify"
	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "Str0ng!Pass"
)

var testMeta = authcore.RequestMeta{SourceAddress: "203.0.113.7", Resource: "/api/auth"}

// memAccounts is a mutex-guarded account.Store.
type memAccounts struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*account.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: make(map[int64]*account.Account)}
}

func cloneAccount(a *account.Account) *account.Account {
	c := *a
	c.Roles = append([]string(nil), a.Roles...)
	if a.LockTime != nil {
		t := *a.LockTime
		c.LockTime = &t
	}
	return &c
}

func (m *memAccounts) FindByUsernameOrEmail(_ context.Context, identifier string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Username == identifier {
			return cloneAccount(a), nil
		}
	}
	for _, a := range m.byID {
		if strings.EqualFold(a.Email, identifier) {
			return cloneAccount(a), nil
		}
	}
	return nil, account.ErrNotFound
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if strings.EqualFold(a.Email, email) {
			return cloneAccount(a), nil
		}
	}
	return nil, account.ErrNotFound
}

func (m *memAccounts) FindByID(_ context.Context, id int64) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (m *memAccounts) Create(_ context.Context, acc *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Username == acc.Username || strings.EqualFold(a.Email, acc.Email) {
			return account.ErrDuplicate
		}
	}
	m.nextID++
	acc.ID = m.nextID
	m.byID[acc.ID] = cloneAccount(acc)
	return nil
}

func (m *memAccounts) Update(_ context.Context, id int64, fn func(*account.Account) error) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	work := cloneAccount(a)
	if err := fn(work); err != nil {
		return nil, err
	}
	m.byID[id] = work
	return cloneAccount(work), nil
}

func (m *memAccounts) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return account.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type sentMessage struct {
	address string
	subject string
	body    string
}

type harness struct {
	engine   *authcore.Engine
	accounts *memAccounts
	clock    *clockwork.FakeClock
	redis    *miniredis.Miniredis
	rdb      *redis.Client
	sink     *audit.ChannelSink

	mu   sync.Mutex
	sent []sentMessage
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.Password.BcryptCost = 4
	cfg.Password.Pepper = "pepper"
	cfg.RateLimit.Capacity = 0
	cfg.Reset.LinkURL = "https://app.example.test/reset"
	return cfg
}

func newHarness(t *testing.T, mutate func(*authcore.Config)) *harness {
	t.Helper()
	return newHarnessWith(t, mutate, nil)
}

// newHarnessWith lets extra override builder collaborators before Build.
func newHarnessWith(t *testing.T, mutate func(*authcore.Config), extra func(*harness, *authcore.Builder)) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		accounts: newMemAccounts(),
		clock:    clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		redis:    mr,
		rdb:      rdb,
		sink:     audit.NewChannelSink(512),
	}
	b := authcore.New().
		WithConfig(cfg).
		WithAccountStore(h.accounts).
		WithRedis(rdb, "test").
		WithClock(h.clock).
		WithAuditSink(h.sink).
		WithNotifier(notify.Func(func(_ context.Context, address, subject, body string) error {
			h.mu.Lock()
			h.sent = append(h.sent, sentMessage{address: address, subject: subject, body: body})
			h.mu.Unlock()
			return nil
		}))
	if extra != nil {
		extra(h, b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	h.engine = engine

	t.Cleanup(func() {
		engine.Close(context.Background())
		_ = rdb.Close()
		mr.Close()
	})
	return h
}

func (h *harness) register(t *testing.T, username, email string) *account.Account {
	t.Helper()
	acc, err := h.engine.Register(context.Background(), testMeta, authcore.RegisterInput{
		Username: username,
		Email:    email,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	return acc
}

func (h *harness) login(t *testing.T, identifier string) authcore.TokenPair {
	t.Helper()
	pair, err := h.engine.Login(context.Background(), testMeta, identifier, testPassword)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", identifier, err)
	}
	return pair
}

var tokenParam = regexp.MustCompile(`token=([A-Za-z0-9-]+)`)

// lastResetToken extracts the secret from the most recent notification.
func (h *harness) lastResetToken(t *testing.T) string {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sent) == 0 {
		t.Fatal("no notification sent")
	}
	m := tokenParam.FindStringSubmatch(h.sent[len(h.sent)-1].body)
	if m == nil {
		t.Fatalf("no token in body %q", h.sent[len(h.sent)-1].body)
	}
	return m[1]
}

func (h *harness) sentCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sent)
}

// drainAudit closes the engine's dispatcher and returns every delivered event.
func (h *harness) drainAudit() []audit.Event {
	h.engine.Close(context.Background())
	var out []audit.Event
	for {
		select {
		case ev := <-h.sink.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func operations(events []audit.Event) []string {
	ops := make([]string, 0, len(events))
	for _, ev := range events {
		ops = append(ops, ev.Operation)
	}
	return ops
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
