package chat

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrNotAuthenticated is returned when a connection routes a message before
// logging in.
var ErrNotAuthenticated = errors.New("chat: connection is not authenticated")

// Session is the server-side state of one connection: the handshake and, once
// authenticated, the identity stamped on everything the connection sends.
//
// A Session is driven by the connection's single read loop, so envelopes are
// handled in arrival order. Identity may be read from other goroutines.
type Session struct {
	handle    Handle
	directory *Directory
	router    *Router
	log       *zap.Logger

	mu       sync.RWMutex
	identity *Identity
}

// NewSession binds a connection handle to the shared registries.
func NewSession(h Handle, directory *Directory, router *Router, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		handle:    h,
		directory: directory,
		router:    router,
		log:       log.With(zap.String("conn_id", h.ID())),
	}
}

// Identity returns the authenticated identity of the connection.
func (s *Session) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Handle processes one inbound envelope. Handshake envelopes always produce a
// correlated response on the connection; routed envelopes produce none.
func (s *Session) Handle(env Envelope) error {
	switch env.Mode {
	case ModeLogin:
		return s.login(env)
	case ModeRegister:
		return s.register(env)
	}

	id, ok := s.Identity()
	if !ok {
		return fmt.Errorf("%w: %s envelope dropped", ErrNotAuthenticated, env.Mode)
	}

	env.Sender = id.Public()
	env.RequestID = ""
	env.Status = ""
	_, err := s.router.Route(env)
	return err
}

// Close detaches the connection from the Directory. It is safe to call more
// than once.
func (s *Session) Close() {
	s.mu.Lock()
	id := s.identity
	s.identity = nil
	s.mu.Unlock()

	if id == nil {
		return
	}
	if s.directory.Detach(id.Nickname, s.handle) {
		s.log.Info("user signed out")
	}
}

func (s *Session) login(req Envelope) error {
	if _, ok := s.Identity(); ok {
		return s.respond(FailureResponse(req, ReasonAlreadyAuthenticated))
	}

	id, ok := s.directory.Authenticate(req.Sender)
	if !ok {
		s.log.Info("login rejected", zap.String("nickname", req.Sender.Nickname))
		return s.respond(FailureResponse(req, ReasonInvalidCredentials))
	}

	if err := s.directory.Attach(id.Nickname, s.handle); err != nil {
		if errors.Is(err, ErrAlreadyAttached) {
			s.log.Info("login rejected: identity in use", zap.String("nickname", id.Nickname))
			return s.respond(FailureResponse(req, ReasonAlreadySignedIn))
		}
		return err
	}

	s.mu.Lock()
	s.identity = &id
	s.log = s.log.With(zap.String("nickname", id.Nickname))
	s.mu.Unlock()

	s.log.Info("user signed in")
	if err := s.respond(SuccessResponse(req, id)); err != nil {
		// The requester will never see the marker; release the identity.
		s.Close()
		return err
	}
	return nil
}

// register always answers with a rejection; the Directory cannot grow.
func (s *Session) register(req Envelope) error {
	err := s.directory.Register(req.Sender)
	s.log.Info("registration refused",
		zap.String("nickname", req.Sender.Nickname),
		zap.Error(err))
	return s.respond(FailureResponse(req, ReasonRegistrationDisabled))
}

func (s *Session) respond(resp Envelope) error {
	if err := s.handle.Deliver(resp); err != nil {
		return fmt.Errorf("respond to %s: %w", resp.Mode, err)
	}
	return nil
}
