package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tyrowin/relaychat/internal/chat"
	"github.com/Tyrowin/relaychat/internal/client"
)

// requestTimeout bounds how long the UI waits for a login or registration.
const requestTimeout = 10 * time.Second

// Chatter is the part of *client.Client the UI drives.
type Chatter interface {
	Login(ctx context.Context, nickname, credential string) (chat.Identity, error)
	Register(ctx context.Context, nickname, credential string) (chat.Identity, error)
	Broadcast(text string) error
	Direct(recipient, text string) error
	Join(room string) error
	SendRoom(room, text string) error
}

// errQuit asks the UI to leave its main loop.
var errQuit = errors.New("tui: quit")

// dispatch runs one command and returns the lines to echo locally.
func dispatch(ctx context.Context, c Chatter, cmd Command) ([]string, error) {
	switch cmd.Kind {
	case KindLogin:
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		id, err := c.Login(ctx, cmd.Nickname, cmd.Credential)
		if err != nil {
			return nil, explain(err)
		}
		return []string{fmt.Sprintf("Logged in as %s", id.Nickname)}, nil

	case KindRegister:
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		id, err := c.Register(ctx, cmd.Nickname, cmd.Credential)
		if err != nil {
			return nil, explain(err)
		}
		return []string{fmt.Sprintf("Registered as %s", id.Nickname)}, nil

	case KindBroadcast:
		if err := c.Broadcast(cmd.Text); err != nil {
			return nil, explain(err)
		}
		return []string{fmt.Sprintf("me : %s", cmd.Text)}, nil

	case KindDirect:
		if err := c.Direct(cmd.Target, cmd.Text); err != nil {
			return nil, explain(err)
		}
		return []string{fmt.Sprintf("me -> %s (Private): %s", cmd.Target, cmd.Text)}, nil

	case KindJoin:
		if err := c.Join(cmd.Target); err != nil {
			return nil, explain(err)
		}
		return []string{fmt.Sprintf("Joined room: %s", cmd.Target)}, nil

	case KindRoom:
		if err := c.SendRoom(cmd.Target, cmd.Text); err != nil {
			return nil, explain(err)
		}
		return []string{fmt.Sprintf("me (Room %s): %s", cmd.Target, cmd.Text)}, nil

	case KindHelp:
		return []string{helpText}, nil

	case KindQuit:
		return nil, errQuit
	}
	return nil, fmt.Errorf("unsupported command kind %d", cmd.Kind)
}

// explain turns client errors into something worth showing a person.
func explain(err error) error {
	var authErr *client.AuthError
	switch {
	case errors.As(err, &authErr):
		return fmt.Errorf("%s failed: %s", authErr.Mode, authErr.Reason)
	case errors.Is(err, client.ErrNotAuthenticated):
		return errors.New("log in first: /login <nick> <password>")
	case errors.Is(err, client.ErrAlreadyAuthenticated):
		return errors.New("already logged in")
	case errors.Is(err, client.ErrRequestInFlight):
		return errors.New("still waiting for the previous request")
	case errors.Is(err, context.DeadlineExceeded):
		return errors.New("no response from server")
	default:
		return err
	}
}
