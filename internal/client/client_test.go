package client_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/relaychat/internal/chat"
	"github.com/Tyrowin/relaychat/internal/client"
)

var errClosed = errors.New("transport closed")

// pipeTransport is an in-memory Transport. The test plays the server: it reads
// what the client wrote from sent and pushes envelopes through inbound.
type pipeTransport struct {
	inbound chan chat.Envelope
	sent    chan chat.Envelope

	closeOnce sync.Once
	closed    chan struct{}
	writeErr  error
}

func newPipe() *pipeTransport {
	return &pipeTransport{
		inbound: make(chan chat.Envelope, 16),
		sent:    make(chan chat.Envelope, 16),
		closed:  make(chan struct{}),
	}
}

func (p *pipeTransport) ReadEnvelope() (chat.Envelope, error) {
	select {
	case env := <-p.inbound:
		return env, nil
	case <-p.closed:
		return chat.Envelope{}, errClosed
	}
}

func (p *pipeTransport) WriteEnvelope(env chat.Envelope) error {
	if p.writeErr != nil {
		return p.writeErr
	}
	select {
	case <-p.closed:
		return errClosed
	default:
	}
	p.sent <- env
	return nil
}

func (p *pipeTransport) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeTransport) nextSent(t *testing.T) chat.Envelope {
	t.Helper()
	select {
	case env := <-p.sent:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the client to write")
	}
	return chat.Envelope{}
}

// answer replies to the next request the client writes.
func (p *pipeTransport) answer(t *testing.T, reply func(req chat.Envelope) chat.Envelope) {
	t.Helper()
	req := p.nextSent(t)
	p.inbound <- reply(req)
}

func newClient(t *testing.T) (*client.Client, *pipeTransport) {
	t.Helper()
	pipe := newPipe()
	c := client.New(pipe, nil)
	t.Cleanup(func() { _ = c.Close() })
	return c, pipe
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

type loginResult struct {
	id  chat.Identity
	err error
}

func loginAsync(ctx context.Context, c *client.Client, nickname, credential string) <-chan loginResult {
	out := make(chan loginResult, 1)
	go func() {
		id, err := c.Login(ctx, nickname, credential)
		out <- loginResult{id, err}
	}()
	return out
}

func TestLoginSuccess(t *testing.T) {
	c, pipe := newClient(t)
	done := loginAsync(testContext(t), c, "alice", "pw1")

	req := pipe.nextSent(t)
	if req.Mode != chat.ModeLogin || req.RequestID == "" {
		t.Fatalf("unexpected login request: %+v", req)
	}
	if req.Sender != (chat.Identity{Nickname: "alice", Credential: "pw1"}) {
		t.Errorf("login request must carry the candidate identity, got %+v", req.Sender)
	}
	if c.State() != client.AwaitingResponse {
		t.Errorf("expected AwaitingResponse while waiting, got %v", c.State())
	}

	pipe.inbound <- chat.SuccessResponse(req, chat.Identity{Nickname: "alice", Credential: "pw1"})

	res := <-done
	if res.err != nil {
		t.Fatalf("Login failed: %v", res.err)
	}
	if res.id != (chat.Identity{Nickname: "alice"}) {
		t.Errorf("expected identity alice, got %+v", res.id)
	}
	if c.State() != client.Authenticated {
		t.Errorf("expected Authenticated, got %v", c.State())
	}
	if id, ok := c.Identity(); !ok || id.Nickname != "alice" {
		t.Errorf("expected cached identity alice, got %+v %v", id, ok)
	}
}

func TestLoginRejected(t *testing.T) {
	c, pipe := newClient(t)
	done := loginAsync(testContext(t), c, "alice", "wrong")

	pipe.answer(t, func(req chat.Envelope) chat.Envelope {
		return chat.FailureResponse(req, chat.ReasonInvalidCredentials)
	})

	res := <-done
	var authErr *client.AuthError
	if !errors.As(res.err, &authErr) {
		t.Fatalf("expected *AuthError, got %v", res.err)
	}
	if authErr.Mode != chat.ModeLogin || authErr.Reason != chat.ReasonInvalidCredentials {
		t.Errorf("unexpected rejection: %+v", authErr)
	}
	if c.State() != client.Unauthenticated {
		t.Errorf("expected Unauthenticated after rejection, got %v", c.State())
	}

	// A rejected login may be retried.
	retry := loginAsync(testContext(t), c, "alice", "pw1")
	pipe.answer(t, func(req chat.Envelope) chat.Envelope {
		return chat.SuccessResponse(req, chat.Identity{Nickname: "alice"})
	})
	if res := <-retry; res.err != nil {
		t.Fatalf("retry failed: %v", res.err)
	}
}

func TestRegisterRejected(t *testing.T) {
	c, pipe := newClient(t)
	ctx := testContext(t)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Register(ctx, "dave", "pw4")
		errc <- err
	}()

	req := pipe.nextSent(t)
	if req.Mode != chat.ModeRegister {
		t.Errorf("expected REGISTER request, got %s", req.Mode)
	}
	pipe.inbound <- chat.FailureResponse(req, chat.ReasonRegistrationDisabled)

	var authErr *client.AuthError
	if err := <-errc; !errors.As(err, &authErr) || authErr.Reason != chat.ReasonRegistrationDisabled {
		t.Fatalf("expected registration rejection, got %v", err)
	}
}

func TestConcurrentLoginRejected(t *testing.T) {
	c, pipe := newClient(t)
	done := loginAsync(testContext(t), c, "alice", "pw1")
	req := pipe.nextSent(t)

	if _, err := c.Login(testContext(t), "bob", "pw2"); !errors.Is(err, client.ErrRequestInFlight) {
		t.Errorf("expected ErrRequestInFlight, got %v", err)
	}
	if _, err := c.Register(testContext(t), "bob", "pw2"); !errors.Is(err, client.ErrRequestInFlight) {
		t.Errorf("expected ErrRequestInFlight for register, got %v", err)
	}

	pipe.inbound <- chat.SuccessResponse(req, chat.Identity{Nickname: "alice"})
	if res := <-done; res.err != nil {
		t.Fatalf("first login failed: %v", res.err)
	}

	if _, err := c.Login(testContext(t), "alice", "pw1"); !errors.Is(err, client.ErrAlreadyAuthenticated) {
		t.Errorf("expected ErrAlreadyAuthenticated, got %v", err)
	}
}

func TestLoginContextCancelled(t *testing.T) {
	c, pipe := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := loginAsync(ctx, c, "alice", "pw1")
	req := pipe.nextSent(t)

	cancel()
	if res := <-done; !errors.Is(res.err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.err)
	}
	if c.State() != client.Unauthenticated {
		t.Errorf("expected Unauthenticated after cancellation, got %v", c.State())
	}

	// The server bound alice before the caller gave up, so the late SUCCESS
	// still authenticates the session.
	pipe.inbound <- chat.SuccessResponse(req, chat.Identity{Nickname: "alice"})
	pipe.inbound <- chat.Envelope{Sender: chat.Identity{Nickname: "bob"}, Mode: chat.ModeAll, Text: "sync"}
	if env := <-c.Messages(); env.Text != "sync" {
		t.Fatalf("unexpected message %+v", env)
	}
	if c.State() != client.Authenticated {
		t.Fatalf("expected Authenticated after the late SUCCESS, got %v", c.State())
	}
	if id, ok := c.Identity(); !ok || id.Nickname != "alice" {
		t.Errorf("expected cached identity alice, got %+v %v", id, ok)
	}

	if err := c.Broadcast("hi"); err != nil {
		t.Fatalf("Broadcast after late login: %v", err)
	}
	if got := pipe.nextSent(t); got.Sender.Nickname != "alice" || got.Text != "hi" {
		t.Errorf("unexpected broadcast %+v", got)
	}
	if _, err := c.Login(testContext(t), "alice", "pw1"); !errors.Is(err, client.ErrAlreadyAuthenticated) {
		t.Errorf("expected ErrAlreadyAuthenticated, got %v", err)
	}
}

func TestLateRejectionOfAbandonedLogin(t *testing.T) {
	c, pipe := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := loginAsync(ctx, c, "alice", "wrong")
	first := pipe.nextSent(t)
	cancel()
	<-done

	// A retry is in flight when the first rejection arrives late.
	retry := loginAsync(testContext(t), c, "alice", "pw1")
	second := pipe.nextSent(t)
	pipe.inbound <- chat.FailureResponse(first, chat.ReasonInvalidCredentials)
	pipe.inbound <- chat.SuccessResponse(second, chat.Identity{Nickname: "alice"})

	if res := <-retry; res.err != nil {
		t.Fatalf("retry failed: %v", res.err)
	}
	if c.State() != client.Authenticated {
		t.Errorf("expected Authenticated, got %v", c.State())
	}
}

func TestRetryAfterLateSuccessKeepsSession(t *testing.T) {
	c, pipe := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := loginAsync(ctx, c, "alice", "pw1")
	first := pipe.nextSent(t)
	cancel()
	<-done

	retry := loginAsync(testContext(t), c, "alice", "pw1")
	second := pipe.nextSent(t)
	pipe.inbound <- chat.SuccessResponse(first, chat.Identity{Nickname: "alice"})
	pipe.inbound <- chat.FailureResponse(second, chat.ReasonAlreadyAuthenticated)

	var authErr *client.AuthError
	if res := <-retry; !errors.As(res.err, &authErr) {
		t.Fatalf("expected the retry to be rejected, got %v", res.err)
	}
	if c.State() != client.Authenticated {
		t.Errorf("a rejected retry must not undo the late login, state is %v", c.State())
	}
}

func TestLoginConnectionLost(t *testing.T) {
	c, pipe := newClient(t)
	done := loginAsync(testContext(t), c, "alice", "pw1")
	pipe.nextSent(t)

	_ = pipe.Close()

	if res := <-done; !errors.Is(res.err, client.ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", res.err)
	}
	<-c.Done()
	if !errors.Is(c.Err(), errClosed) {
		t.Errorf("expected transport error, got %v", c.Err())
	}
	if _, err := c.Login(testContext(t), "alice", "pw1"); !errors.Is(err, client.ErrConnectionLost) {
		t.Errorf("expected ErrConnectionLost after disconnect, got %v", err)
	}
}

func TestLoginWriteFailure(t *testing.T) {
	pipe := newPipe()
	pipe.writeErr = errClosed
	c := client.New(pipe, nil)
	defer func() { _ = c.Close() }()

	if _, err := c.Login(testContext(t), "alice", "pw1"); !errors.Is(err, errClosed) {
		t.Fatalf("expected write error, got %v", err)
	}
	if c.State() != client.Unauthenticated {
		t.Errorf("expected Unauthenticated after failed write, got %v", c.State())
	}
}

func TestSendRequiresLogin(t *testing.T) {
	c, _ := newClient(t)

	sends := map[string]func() error{
		"broadcast": func() error { return c.Broadcast("hi") },
		"direct":    func() error { return c.Direct("bob", "hi") },
		"join":      func() error { return c.Join("go") },
		"room":      func() error { return c.SendRoom("go", "hi") },
	}
	for name, send := range sends {
		if err := send(); !errors.Is(err, client.ErrNotAuthenticated) {
			t.Errorf("%s: expected ErrNotAuthenticated, got %v", name, err)
		}
	}
}

func TestSendAfterLogin(t *testing.T) {
	c, pipe := newClient(t)
	done := loginAsync(testContext(t), c, "alice", "pw1")
	pipe.answer(t, func(req chat.Envelope) chat.Envelope {
		return chat.SuccessResponse(req, chat.Identity{Nickname: "alice"})
	})
	if res := <-done; res.err != nil {
		t.Fatalf("login: %v", res.err)
	}

	alice := chat.Identity{Nickname: "alice"}
	tests := []struct {
		name string
		send func() error
		want chat.Envelope
	}{
		{"broadcast", func() error { return c.Broadcast("hi") },
			chat.Envelope{Sender: alice, Mode: chat.ModeAll, Text: "hi"}},
		{"direct", func() error { return c.Direct("bob", "psst") },
			chat.Envelope{Sender: alice, Mode: chat.ModeDirect, Recipient: "bob", Text: "psst"}},
		{"join", func() error { return c.Join("go") },
			chat.Envelope{Sender: alice, Mode: chat.ModeJoin, Room: "go"}},
		{"room", func() error { return c.SendRoom("go", "hello") },
			chat.Envelope{Sender: alice, Mode: chat.ModeRoom, Room: "go", Text: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.send(); err != nil {
				t.Fatalf("send: %v", err)
			}
			if got := pipe.nextSent(t); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestMessagesForwardedAndClosed(t *testing.T) {
	c, pipe := newClient(t)

	stray := chat.Envelope{Mode: chat.ModeLogin, RequestID: "unknown", Status: chat.StatusSuccess}
	msg := chat.Envelope{Sender: chat.Identity{Nickname: "bob"}, Mode: chat.ModeDirect, Recipient: "alice", Text: "hi"}
	pipe.inbound <- stray
	pipe.inbound <- msg

	select {
	case got := <-c.Messages():
		if got != msg {
			t.Errorf("expected %+v, got %+v", msg, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the message")
	}
	if c.State() != client.Unauthenticated {
		t.Errorf("an uncorrelated response must not authenticate, state is %v", c.State())
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-c.Messages(); ok {
		t.Error("Messages should be closed after the connection ends")
	}
}
