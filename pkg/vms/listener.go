package vms

import (
	"sync"

	"github.com/vehiclemap/vms/pkg/errors"
)

// listenerSlot holds the at-most-one active consumer callback. The mutex
// covers only the reference itself; the callback is always invoked outside
// the lock.
type listenerSlot struct {
	mu       sync.Mutex
	listener Listener
}

func (s *listenerSlot) set(l Listener) error {
	if l == nil {
		return errors.NewValidationError("listener", "listener cannot be nil", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.NewAlreadyConfiguredError("")
	}
	s.listener = l
	return nil
}

// clear is idempotent and always succeeds.
func (s *listenerSlot) clear() {
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
}

// current returns a snapshot of the active listener, if any.
func (s *listenerSlot) current() (Listener, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener, s.listener != nil
}
