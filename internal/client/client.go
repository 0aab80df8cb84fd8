// Package client is the relay's client-side core: the session state machine,
// the response observer that is the only reader of the connection, and the
// per-request completion signals that let a caller block until its login or
// registration is answered.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/chat"
)

// State is the authentication state of the local session.
type State int

// Session states.
const (
	Unauthenticated State = iota
	AwaitingResponse
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AwaitingResponse:
		return "awaiting response"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const incomingBuffer = 256

var (
	// ErrNotAuthenticated is returned when sending a message before login.
	ErrNotAuthenticated = errors.New("client: not authenticated")
	// ErrAlreadyAuthenticated is returned by Login/Register after a
	// successful login.
	ErrAlreadyAuthenticated = errors.New("client: already authenticated")
	// ErrRequestInFlight is returned when a login or registration is already
	// waiting for its response.
	ErrRequestInFlight = errors.New("client: a request is already awaiting its response")
	// ErrConnectionLost is returned when the connection ends while waiting.
	ErrConnectionLost = errors.New("client: connection lost")
)

// AuthError reports an explicit rejection from the server.
type AuthError struct {
	Mode   chat.Mode
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Mode, e.Reason)
}

// Client is a connected relay client.
type Client struct {
	transport Transport
	log       *zap.Logger

	mu       sync.Mutex
	state    State
	identity chat.Identity
	pending  map[string]chan chat.Envelope

	// abandoned holds requests whose caller gave up after the envelope was
	// written. The server still answers them.
	abandoned map[string]struct{}

	incoming  chan chat.Envelope
	done      chan struct{}
	err       error
	closeOnce sync.Once
}

// New starts a client over an established transport. The response observer
// runs until the transport fails or Close is called.
func New(t Transport, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		transport: t,
		log:       log.Named("client"),
		pending:   make(map[string]chan chat.Envelope),
		abandoned: make(map[string]struct{}),
		incoming:  make(chan chat.Envelope, incomingBuffer),
		done:      make(chan struct{}),
	}
	go c.observe()
	return c
}

// Dial connects to a relay server over WebSocket and starts a client on it.
func Dial(ctx context.Context, url, origin string, log *zap.Logger) (*Client, error) {
	t, err := DialWebSocket(ctx, url, origin)
	if err != nil {
		return nil, err
	}
	return New(t, log), nil
}

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the identity cached from the login response.
func (c *Client) Identity() (chat.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity, c.state == Authenticated
}

// Messages delivers the chat envelopes received from other users. It is
// closed when the connection ends.
func (c *Client) Messages() <-chan chat.Envelope {
	return c.incoming
}

// Done is closed when the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, once Done is closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Login authenticates as nickname and blocks until the server answers, ctx
// ends or the connection is lost. On success the returned identity is also
// cached as the session identity.
func (c *Client) Login(ctx context.Context, nickname, credential string) (chat.Identity, error) {
	return c.request(ctx, chat.ModeLogin, chat.Identity{Nickname: nickname, Credential: credential})
}

// Register asks the server to create an identity. The server declines every
// registration, which surfaces as an *AuthError.
func (c *Client) Register(ctx context.Context, nickname, credential string) (chat.Identity, error) {
	return c.request(ctx, chat.ModeRegister, chat.Identity{Nickname: nickname, Credential: credential})
}

// Broadcast sends text to every connected user.
func (c *Client) Broadcast(text string) error {
	return c.send(chat.Envelope{Mode: chat.ModeAll, Text: text})
}

// Direct sends text to one user. Delivery to an offline user is silently
// dropped by the server.
func (c *Client) Direct(recipient, text string) error {
	return c.send(chat.Envelope{Mode: chat.ModeDirect, Recipient: recipient, Text: text})
}

// Join adds the session's user to a room. The server sends no acknowledgement.
func (c *Client) Join(room string) error {
	return c.send(chat.Envelope{Mode: chat.ModeJoin, Room: room})
}

// SendRoom sends text to the other members of a room the user has joined.
func (c *Client) SendRoom(room, text string) error {
	return c.send(chat.Envelope{Mode: chat.ModeRoom, Room: room, Text: text})
}

// Close ends the connection. The observer stops and any waiting request
// returns ErrConnectionLost.
func (c *Client) Close() error {
	err := c.transport.Close()
	<-c.done
	return err
}

func (c *Client) send(env chat.Envelope) error {
	c.mu.Lock()
	if c.state != Authenticated {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	env.Sender = c.identity
	c.mu.Unlock()

	return c.transport.WriteEnvelope(env)
}

// request sends a handshake envelope and waits on its own completion channel.
func (c *Client) request(ctx context.Context, mode chat.Mode, candidate chat.Identity) (chat.Identity, error) {
	requestID := uuid.NewString()
	reply := make(chan chat.Envelope, 1)

	c.mu.Lock()
	switch {
	case c.err != nil:
		err := c.err
		c.mu.Unlock()
		return chat.Identity{}, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	case c.state == Authenticated:
		c.mu.Unlock()
		return chat.Identity{}, ErrAlreadyAuthenticated
	case c.state == AwaitingResponse:
		c.mu.Unlock()
		return chat.Identity{}, ErrRequestInFlight
	}
	c.pending[requestID] = reply
	c.state = AwaitingResponse
	c.mu.Unlock()

	err := c.transport.WriteEnvelope(chat.Envelope{
		Sender:    candidate,
		Mode:      mode,
		RequestID: requestID,
	})
	if err != nil {
		c.abandon(requestID)
		return chat.Identity{}, fmt.Errorf("send %s: %w", mode, err)
	}

	select {
	case resp := <-reply:
		return outcome(mode, resp)
	case <-ctx.Done():
		c.abandon(requestID)
		return chat.Identity{}, ctx.Err()
	case <-c.done:
		select {
		case resp := <-reply:
			return outcome(mode, resp)
		default:
		}
		return chat.Identity{}, fmt.Errorf("%w: %v", ErrConnectionLost, c.Err())
	}
}

func outcome(mode chat.Mode, resp chat.Envelope) (chat.Identity, error) {
	if !resp.IsSuccess() {
		return chat.Identity{}, &AuthError{Mode: mode, Reason: resp.Text}
	}
	return resp.Sender, nil
}

// abandon withdraws a request nobody is waiting for any more.
func (c *Client) abandon(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[requestID]; !ok {
		return
	}
	delete(c.pending, requestID)
	c.abandoned[requestID] = struct{}{}
	if c.state == AwaitingResponse {
		c.state = Unauthenticated
	}
}

// observe is the single reader of the transport. It applies handshake
// responses to the session state before waking the requester, and forwards
// everything else to Messages.
func (c *Client) observe() {
	var err error
	for {
		var env chat.Envelope
		env, err = c.transport.ReadEnvelope()
		if err != nil {
			break
		}

		if env.IsResponse() {
			c.resolve(env)
			continue
		}

		select {
		case c.incoming <- env:
		default:
			c.log.Warn("incoming queue full; dropping message",
				zap.String("mode", string(env.Mode)),
				zap.String("sender", env.Sender.Nickname))
		}
	}
	c.shutdown(err)
}

func (c *Client) resolve(resp chat.Envelope) {
	c.mu.Lock()
	reply, ok := c.pending[resp.RequestID]
	if !ok {
		c.resolveAbandoned(resp)
		c.mu.Unlock()
		return
	}
	delete(c.pending, resp.RequestID)

	if resp.IsSuccess() {
		c.state = Authenticated
		c.identity = resp.Sender
	} else if c.state != Authenticated {
		c.state = Unauthenticated
	}
	c.mu.Unlock()

	if resp.IsSuccess() {
		c.log.Info("logged in", zap.String("nickname", resp.Sender.Nickname))
	}
	reply <- resp
}

// resolveAbandoned applies a response nobody is waiting for. The server has
// bound the identity on a late SUCCESS, so the session follows it. Called
// with mu held.
func (c *Client) resolveAbandoned(resp chat.Envelope) {
	if _, ok := c.abandoned[resp.RequestID]; !ok {
		c.log.Warn("uncorrelated response ignored",
			zap.String("request_id", resp.RequestID),
			zap.String("status", string(resp.Status)))
		return
	}
	delete(c.abandoned, resp.RequestID)

	if !resp.IsSuccess() {
		c.log.Debug("late rejection of abandoned request",
			zap.String("request_id", resp.RequestID),
			zap.String("reason", resp.Text))
		return
	}
	c.state = Authenticated
	c.identity = resp.Sender
	c.log.Info("logged in after the request was abandoned",
		zap.String("nickname", resp.Sender.Nickname),
		zap.String("request_id", resp.RequestID))
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.state = Unauthenticated
		c.identity = chat.Identity{}
		c.pending = make(map[string]chan chat.Envelope)
		c.abandoned = make(map[string]struct{})
		c.mu.Unlock()

		close(c.done)
		close(c.incoming)
		c.log.Info("connection ended", zap.Error(err))
	})
}
