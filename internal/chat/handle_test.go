package chat_test

import (
	"errors"
	"sync"

	"github.com/Tyrowin/relaychat/internal/chat"
)

var errTransportDown = errors.New("transport down")

// recordingHandle is an in-memory connection handle that records what the
// router hands it.
type recordingHandle struct {
	id   string
	fail error

	mu       sync.Mutex
	received []chat.Envelope
}

func newHandle(id string) *recordingHandle {
	return &recordingHandle{id: id}
}

func (h *recordingHandle) ID() string { return h.id }

func (h *recordingHandle) Deliver(env chat.Envelope) error {
	if h.fail != nil {
		return h.fail
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, env)
	return nil
}

func (h *recordingHandle) envelopes() []chat.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]chat.Envelope(nil), h.received...)
}

func seedIdentities() []chat.Identity {
	return []chat.Identity{
		{Nickname: "alice", Credential: "pw1"},
		{Nickname: "bob", Credential: "pw2"},
		{Nickname: "carol", Credential: "pw3"},
	}
}
