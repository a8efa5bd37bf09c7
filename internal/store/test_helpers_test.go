package store

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/roach88/aspect/internal/engine"
	"github.com/roach88/aspect/internal/testservice"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// captured collects the invocations an engine dispatches.
type captured struct {
	mu      sync.Mutex
	invoked []*engine.Invocation
}

func (c *captured) Invoked(inv *engine.Invocation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invoked = append(c.invoked, inv)
}

func (c *captured) Completed(*engine.Invocation) {}

func (c *captured) all() []*engine.Invocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invoked
}

// newService returns a proxied test service reporting to obs, with
// sequential call IDs "call-1", "call-2", ...
func newService(obs engine.Observer) testservice.Service {
	e := engine.New(nil,
		engine.WithObserver(obs),
		engine.WithCallIDs(engine.NewSequenceGenerator("")))
	return testservice.Contract.Proxy(e, engine.PairingOf[testservice.Service, *testservice.Impl](), testservice.New())
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
