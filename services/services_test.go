package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cppla/anonid/identity"
	"github.com/cppla/anonid/services"
	"github.com/cppla/anonid/store"
	"github.com/cppla/anonid/store/storetest"
)

// 2024-03-05 is a Tuesday; 03:00 UTC is noon in the reward zone.
var tuesdayNoonKST = time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type env struct {
	svc   *services.Services
	st    *store.Store
	ids   *identity.Resolver
	clock *testClock
}

func newEnv(t *testing.T, opts ...services.Option) *env {
	t.Helper()
	st := storetest.New(t)
	ids, err := identity.New("test-fingerprint-secret")
	require.NoError(t, err)
	clock := &testClock{t: tuesdayNoonKST}
	opts = append([]services.Option{services.WithClock(clock.Now)}, opts...)
	return &env{svc: services.New(st, ids, opts...), st: st, ids: ids, clock: clock}
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, status.Code(err), err.Error())
}
