package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// operation tracks one asynchronous install or removal.
type operation struct {
	id     string
	ref    string
	cancel context.CancelFunc
	done   chan struct{}
}

// registration binds a bundle ref to the operation currently working on it.
// The provider ref of a two-step install is registered separately from the
// voice ref and released as soon as the provider step completes, so waiters
// on the provider do not block for the rest of the voice install.
type registration struct {
	op       *operation
	released chan struct{}
}

// inflightRegistry is the process-wide table of bundle refs with an
// operation in flight. At most one operation may hold a ref at a time.
type inflightRegistry struct {
	mu   sync.Mutex
	refs map[string]*registration
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{refs: make(map[string]*registration)}
}

// Active reports whether an operation currently holds the ref.
func (r *inflightRegistry) Active(ref string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.refs[ref]
	return ok
}

func (r *inflightRegistry) lookup(ref string) (*operation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.refs[ref]
	if !ok {
		return nil, false
	}
	return reg.op, true
}

// claim registers the ref for op. It fails when another operation already
// holds the ref.
func (r *inflightRegistry) claim(ref string, op *operation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refs[ref]; ok {
		return false
	}
	r.refs[ref] = &registration{op: op, released: make(chan struct{})}
	return true
}

// release drops the registration and wakes anyone waiting on the ref.
func (r *inflightRegistry) release(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.refs[ref]; ok {
		close(reg.released)
		delete(r.refs, ref)
	}
}

// wait blocks until no operation holds the ref or the context is done.
func (r *inflightRegistry) wait(ctx context.Context, ref string) error {
	for {
		r.mu.Lock()
		reg, ok := r.refs[ref]
		r.mu.Unlock()
		if !ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reg.released:
		}
	}
}

// refLocks serializes bundle operations across processes with one advisory
// lock file per bundle ref.
type refLocks struct {
	dir string
}

func newRefLocks(dir string) *refLocks {
	return &refLocks{dir: dir}
}

// acquire takes the cross-process lock for the ref, blocking until it is
// available or the context is done. The returned function releases it.
func (l *refLocks) acquire(ctx context.Context, ref string) (func(), error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(l.dir, lockFileName(ref)))
	ok, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", ref, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: not acquired", ref)
	}
	return func() { _ = lock.Unlock() }, nil
}

func lockFileName(ref string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, ref)
	return cleaned + ".lock"
}
