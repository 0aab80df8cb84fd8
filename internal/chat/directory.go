package chat

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownIdentity is returned when a nickname is not in the Directory.
	ErrUnknownIdentity = errors.New("chat: unknown identity")
	// ErrAlreadyAttached is returned when an identity already has a live
	// connection handle.
	ErrAlreadyAttached = errors.New("chat: identity already has a live connection")
	// ErrRegistrationUnsupported is returned by Register; the Directory is
	// seeded at startup and never grows.
	ErrRegistrationUnsupported = errors.New("chat: registration is not supported")
	// ErrDuplicateNickname is returned when a seed set repeats a nickname.
	ErrDuplicateNickname = errors.New("chat: duplicate nickname")
	// ErrEmptyNickname is returned when a seed identity has no nickname.
	ErrEmptyNickname = errors.New("chat: empty nickname")
)

// Handle is the outbound side of one live connection. Deliver must not block:
// the Router calls it while holding the Directory read lock.
type Handle interface {
	ID() string
	Deliver(Envelope) error
}

type entry struct {
	identity Identity
	handle   Handle
}

// target is one resolved recipient of a fan-out.
type target struct {
	nickname string
	handle   Handle
}

// Directory is the registry of known identities and their live connection
// handle, if any. It is safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

// NewDirectory builds a Directory from a fixed seed set. Nicknames must be
// non-empty and unique.
func NewDirectory(seed []Identity) (*Directory, error) {
	d := &Directory{
		order:   make([]string, 0, len(seed)),
		entries: make(map[string]*entry, len(seed)),
	}
	for _, id := range seed {
		if strings.TrimSpace(id.Nickname) == "" {
			return nil, ErrEmptyNickname
		}
		if _, exists := d.entries[id.Nickname]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNickname, id.Nickname)
		}
		d.entries[id.Nickname] = &entry{identity: id}
		d.order = append(d.order, id.Nickname)
	}
	return d, nil
}

// Lookup returns the identity registered under nickname.
func (d *Directory) Lookup(nickname string) (Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entries[nickname]
	if !ok {
		return Identity{}, false
	}
	return e.identity, true
}

// Authenticate succeeds iff a stored identity matches both the nickname and
// the credential of the candidate exactly.
func (d *Directory) Authenticate(candidate Identity) (Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entries[candidate.Nickname]
	if !ok || e.identity.Credential != candidate.Credential {
		return Identity{}, false
	}
	return e.identity, true
}

// Attach sets the live connection handle of an identity. An identity holds at
// most one handle at a time.
func (d *Directory) Attach(nickname string, h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[nickname]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownIdentity, nickname)
	}
	if e.handle != nil && e.handle != h {
		return fmt.Errorf("%w: %q", ErrAlreadyAttached, nickname)
	}
	e.handle = h
	return nil
}

// Detach clears the live handle of an identity if it is still h. It reports
// whether a handle was removed; detaching a stale handle is a no-op.
func (d *Directory) Detach(nickname string, h Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[nickname]
	if !ok || e.handle == nil || e.handle != h {
		return false
	}
	e.handle = nil
	return true
}

// Register is a declared no-op: identities only come from the seed set.
func (d *Directory) Register(Identity) error {
	return ErrRegistrationUnsupported
}

// Online returns the sorted nicknames that currently have a live handle.
func (d *Directory) Online() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	online := make([]string, 0, len(d.entries))
	for nickname, e := range d.entries {
		if e.handle != nil {
			online = append(online, nickname)
		}
	}
	sort.Strings(online)
	return online
}

// withLive calls fn with the live targets selected by pick while holding the
// read lock, so no handle can be detached mid fan-out.
func (d *Directory) withLive(pick func(nickname string) bool, fn func([]target)) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	targets := make([]target, 0, len(d.order))
	for _, nickname := range d.order {
		e := d.entries[nickname]
		if e.handle == nil || !pick(nickname) {
			continue
		}
		targets = append(targets, target{nickname: nickname, handle: e.handle})
	}
	fn(targets)
}
