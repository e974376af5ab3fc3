// Package session owns per-conversation honeypot state and its lifecycle.
package session

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"

	"github.com/ashureev/honeypot/internal/domain"
)

// ErrNotFound is returned when a session id is unknown to the store.
var ErrNotFound = fmt.Errorf("session: %w", errdefs.ErrNotFound)

// Store defines per-session state operations. Implementations must
// serialize mutations of a single session while letting distinct sessions
// proceed in parallel.
type Store interface {
	// Create allocates a RUNNING session and returns a snapshot of it.
	Create(analysis *domain.Analysis) *domain.Session

	// Get returns a snapshot of the session or ErrNotFound.
	Get(id string) (*domain.Session, error)

	// End transitions the session to ENDED. Unknown ids and already ended
	// sessions are left untouched.
	End(id string, reason domain.StopReason)

	// AppendMessage adds a transcript entry. Unknown ids are ignored.
	AppendMessage(id string, role domain.Role, text string)

	// TouchLastContact records the time of the latest actor message.
	TouchLastContact(id string)

	// Update runs fn with exclusive access to the live session. Changes made
	// by fn are kept even when it returns an error.
	Update(id string, fn func(s *domain.Session) error) error

	// List returns snapshots of every session in creation order.
	List() []*domain.Session

	// Remove drops the session and reports whether it existed.
	Remove(id string) bool
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errdefs.IsNotFound(err)
}
