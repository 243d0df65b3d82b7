package application

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/account-service/internal/application/projection"
	"github.com/oksasatya/account-service/internal/domain/entity"
	"github.com/oksasatya/account-service/internal/domain/event"
	"github.com/oksasatya/account-service/internal/infrastructure/memory"
)

type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (plainHasher) Verify(plain, hash string) bool { return hash == "hashed:"+plain }

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTickClock() *tickClock {
	return &tickClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *tickClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentReset struct {
	to, name, token string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentReset
	err  error
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, to, name, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentReset{to: to, name: name, token: token})
	return nil
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []entity.AuditLog
}

func (a *auditRecorder) Insert(_ context.Context, e entity.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

type fixture struct {
	store    *memory.EventStore
	cache    *memory.AccountCache
	resetsDB *memory.PasswordResetRepository
	clock    *tickClock
	notifier *fakeNotifier
	audit    *auditRecorder

	authz    *Authorizer
	queries  *AccountQueries
	commands *AccountCommands
	resets   *PasswordResets
}

var (
	admin = &Requester{ID: "admin-1", Roles: []string{entity.RolePlatformAdmin}}
	rw    = &Requester{ID: "rw-1", Roles: []string{entity.RolePlatformAccountRW}}
	ro    = &Requester{ID: "ro-1", Roles: []string{entity.RolePlatformAccountRO}}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		store:    memory.NewEventStore(),
		cache:    memory.NewAccountCache(),
		clock:    newTickClock(),
		notifier: &fakeNotifier{},
		audit:    &auditRecorder{},
	}
	f.resetsDB = memory.NewPasswordResetRepository().WithNow(f.clock.Now)
	f.authz = NewAuthorizer(true, logger)
	f.queries = NewAccountQueries(f.store, f.cache, f.authz, nil, logger)

	dispatcher := projection.NewDispatcher(projection.ModeSync, 4, 0, logger,
		projection.NewAccountProjector(f.cache, f.store, logger))
	t.Cleanup(dispatcher.Close)

	f.commands = NewAccountCommands(f.store, f.queries, plainHasher{}, f.authz, dispatcher, f.audit, logger)
	seq := 0
	f.commands.NewID = func() string {
		seq++
		return fmt.Sprintf("acc-%03d", seq)
	}
	f.commands.Now = f.clock.Now

	f.resets = NewPasswordResets(f.resetsDB, f.queries, f.commands, f.notifier, time.Hour, logger)
	f.resets.Now = f.clock.Now
	f.resets.Go = func(fn func()) { fn() }
	return f
}

func (f *fixture) create(t *testing.T, name, email string, roles ...string) string {
	t.Helper()
	acc, err := f.commands.Create(context.Background(), admin, CreateAccountInput{
		Name:     name,
		Email:    email,
		Password: "secret-" + strings.ToLower(name),
		Roles:    roles,
		Sources:  []string{"acme"},
	})
	require.NoError(t, err)
	return acc.ID
}

func (f *fixture) events(t *testing.T, id string) []event.Type {
	t.Helper()
	recs, err := f.store.Events(context.Background(), id)
	require.NoError(t, err)
	out := make([]event.Type, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Type)
	}
	return out
}
