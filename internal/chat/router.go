package chat

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrUnknownMode is returned for envelopes the Router cannot route.
	ErrUnknownMode = errors.New("chat: unknown delivery mode")
	// ErrMissingRoom is returned for a JOIN that names no room.
	ErrMissingRoom = errors.New("chat: room name is required")
)

// DeliveryError scopes a transport failure to a single recipient.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %q: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Result summarizes one routing decision.
type Result struct {
	// Delivered lists the recipients whose transport accepted the envelope.
	Delivered []string
	// Failed holds one error per recipient whose transport refused it.
	Failed []*DeliveryError
	// Joined is set when a JOIN changed room membership.
	Joined bool
}

// Router resolves the target set of an envelope from the Directory and Room
// Registry and hands the envelope to each target's handle.
type Router struct {
	directory *Directory
	rooms     *RoomRegistry
	log       *zap.Logger
}

// NewRouter wires a Router to its registries.
func NewRouter(directory *Directory, rooms *RoomRegistry, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		directory: directory,
		rooms:     rooms,
		log:       log.Named("router"),
	}
}

// Route delivers env according to its mode. The sender is env.Sender and must
// already be the authenticated identity of the originating connection.
// Recipients that cannot be resolved are silently skipped; only unroutable
// envelopes produce an error.
func (r *Router) Route(env Envelope) (Result, error) {
	switch env.Mode {
	case ModeAll:
		return r.broadcast(env), nil
	case ModeDirect:
		return r.direct(env), nil
	case ModeRoom:
		return r.room(env), nil
	case ModeJoin:
		return r.join(env)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMode, env.Mode)
	}
}

// broadcast sends to every live identity except the sender. Each recipient
// gets its own scrubbed copy.
func (r *Router) broadcast(env Envelope) Result {
	sender := env.Sender.Nickname
	var res Result
	r.directory.withLive(func(nickname string) bool {
		return nickname != sender
	}, func(targets []target) {
		for _, t := range targets {
			r.deliver(&res, t, env.scrubbed())
		}
	})
	r.log.Debug("broadcast routed",
		zap.String("sender", sender),
		zap.Int("delivered", len(res.Delivered)),
		zap.Int("failed", len(res.Failed)))
	return res
}

// direct sends to the named recipient if it is live. Unknown or offline
// recipients are dropped without telling the sender.
func (r *Router) direct(env Envelope) Result {
	var res Result
	if env.Recipient == "" {
		return res
	}
	r.directory.withLive(func(nickname string) bool {
		return nickname == env.Recipient
	}, func(targets []target) {
		if len(targets) > 0 {
			r.deliver(&res, targets[0], env)
		}
	})
	if len(res.Delivered) == 0 && len(res.Failed) == 0 {
		r.log.Debug("direct message dropped",
			zap.String("sender", env.Sender.Nickname),
			zap.String("recipient", env.Recipient))
	}
	return res
}

// room sends to the live members of the named room other than the sender.
// Senders that are not members get nothing delivered.
func (r *Router) room(env Envelope) Result {
	var res Result
	room := NormalizeRoom(env.Room)
	env.Room = room
	sender := env.Sender.Nickname

	members, ok := r.rooms.membersFor(room, sender)
	if !ok {
		r.log.Debug("room message from non-member ignored",
			zap.String("sender", sender),
			zap.String("room", room))
		return res
	}

	r.directory.withLive(func(nickname string) bool {
		_, member := members[nickname]
		return member && nickname != sender
	}, func(targets []target) {
		for _, t := range targets {
			r.deliver(&res, t, env)
		}
	})
	return res
}

// join adds the sender to the room. Nothing is delivered to existing members.
func (r *Router) join(env Envelope) (Result, error) {
	room := NormalizeRoom(env.Room)
	if room == "" {
		return Result{}, ErrMissingRoom
	}
	if _, ok := r.directory.Lookup(env.Sender.Nickname); !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownIdentity, env.Sender.Nickname)
	}

	joined := r.rooms.Join(room, env.Sender.Nickname)
	if joined {
		r.log.Info("room joined",
			zap.String("nickname", env.Sender.Nickname),
			zap.String("room", room))
	}
	return Result{Joined: joined}, nil
}

func (r *Router) deliver(res *Result, t target, env Envelope) {
	if err := t.handle.Deliver(env); err != nil {
		derr := &DeliveryError{Recipient: t.nickname, Err: err}
		res.Failed = append(res.Failed, derr)
		r.log.Warn("delivery failed",
			zap.String("recipient", t.nickname),
			zap.String("conn_id", t.handle.ID()),
			zap.String("mode", string(env.Mode)),
			zap.Error(err))
		return
	}
	res.Delivered = append(res.Delivered, t.nickname)
}
