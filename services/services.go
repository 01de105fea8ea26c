// Package services implements the identity, ledger, attendance and recovery operations. Every
// operation runs its reads and writes inside one store transaction.
package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/anonid/identity"
	"github.com/cppla/anonid/store"
)

// Cache is a best-effort key/value mirror used for read models. Implementations must tolerate
// being unavailable.
type Cache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type core struct {
	store  *store.Store
	ids    *identity.Resolver
	policy Policy
	log    *zap.Logger
	now    func() time.Time
	cache  Cache
}

// Option configures the services.
type Option func(*core)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *core) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *core) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPolicy overrides the reward and quota policy.
func WithPolicy(p Policy) Option {
	return func(c *core) { c.policy = p }
}

// WithCache sets the read-model cache mirror.
func WithCache(cache Cache) Option {
	return func(c *core) { c.cache = cache }
}

// Services groups every service sharing one store and resolver.
type Services struct {
	Registration *RegistrationService
	Ledger       *LedgerService
	Attendance   *AttendanceService
	Recovery     *RecoveryService
	Profile      *ProfileService
	Discussions  *DiscussionService
}

// New wires all services.
func New(st *store.Store, ids *identity.Resolver, opts ...Option) *Services {
	c := &core{
		store:  st,
		ids:    ids,
		policy: DefaultPolicy(),
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return &Services{
		Registration: &RegistrationService{core: c},
		Ledger:       &LedgerService{core: c},
		Attendance:   &AttendanceService{core: c},
		Recovery:     &RecoveryService{core: c},
		Profile:      &ProfileService{core: c},
		Discussions:  &DiscussionService{core: c},
	}
}

func (c *core) clock() time.Time {
	return c.now().UTC()
}
