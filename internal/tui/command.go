// Package tui is the terminal front end of the relay client: a gocui layout,
// the slash-command parser behind its input line, and the rendering of
// inbound envelopes.
package tui

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a parsed input line.
type Kind int

// Input kinds.
const (
	KindBroadcast Kind = iota
	KindLogin
	KindRegister
	KindDirect
	KindJoin
	KindRoom
	KindHelp
	KindQuit
)

// Command is one parsed input line.
type Command struct {
	Kind       Kind
	Nickname   string
	Credential string
	Target     string
	Text       string
}

// ErrEmptyInput is returned for a blank input line.
var ErrEmptyInput = errors.New("tui: empty input")

// UsageError reports a malformed or unknown command.
type UsageError struct {
	Command string
	Usage   string
}

func (e *UsageError) Error() string {
	if e.Usage == "" {
		return fmt.Sprintf("unknown command %s (try /help)", e.Command)
	}
	return "usage: " + e.Usage
}

const helpText = `Commands:
/login <nick> <password>     Sign in
/register <nick> <password>  Request a new account
/all <text>                  Send to everyone (plain text does the same)
/msg <nick> <text>           Private message
/join <room>                 Join a room
/room <room> <text>          Send to a room you joined
/help                        Show this help
/quit                        Leave

Nicknames with spaces can be quoted: /msg "Mock 2" hello

Keybindings:
Ctrl-C  Quit
Ctrl-H  Toggle help
Enter   Send`

// Parse turns one input line into a Command. Text without a leading slash is
// a broadcast.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrEmptyInput
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: KindBroadcast, Text: line}, nil
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/login":
		return parseCredentials(KindLogin, rest, "/login <nick> <password>")
	case "/register":
		return parseCredentials(KindRegister, rest, "/register <nick> <password>")
	case "/all":
		if rest == "" {
			return Command{}, &UsageError{Command: name, Usage: "/all <text>"}
		}
		return Command{Kind: KindBroadcast, Text: rest}, nil
	case "/msg":
		target, text := splitTarget(rest)
		if target == "" || text == "" {
			return Command{}, &UsageError{Command: name, Usage: "/msg <nick> <text>"}
		}
		return Command{Kind: KindDirect, Target: target, Text: text}, nil
	case "/join":
		room := unquote(rest)
		if room == "" {
			return Command{}, &UsageError{Command: name, Usage: "/join <room>"}
		}
		return Command{Kind: KindJoin, Target: room}, nil
	case "/room":
		target, text := splitTarget(rest)
		if target == "" || text == "" {
			return Command{}, &UsageError{Command: name, Usage: "/room <room> <text>"}
		}
		return Command{Kind: KindRoom, Target: target, Text: text}, nil
	case "/help":
		return Command{Kind: KindHelp}, nil
	case "/quit", "/exit":
		return Command{Kind: KindQuit}, nil
	default:
		return Command{}, &UsageError{Command: name}
	}
}

// parseCredentials reads "<nick> <password>". The password is the last word;
// everything before it is the nickname, so "Mock 1 1234" works unquoted.
func parseCredentials(kind Kind, rest, usage string) (Command, error) {
	var nick, credential string
	if strings.HasPrefix(rest, `"`) {
		nick, credential = splitTarget(rest)
	} else if i := strings.LastIndex(rest, " "); i > 0 {
		nick, credential = strings.TrimSpace(rest[:i]), rest[i+1:]
	}
	if nick == "" || credential == "" || strings.Contains(credential, " ") {
		return Command{}, &UsageError{Command: strings.Fields(usage)[0], Usage: usage}
	}
	return Command{Kind: kind, Nickname: nick, Credential: credential}, nil
}

// splitTarget splits the first word, or a double-quoted phrase, from the
// rest of the line.
func splitTarget(rest string) (string, string) {
	if strings.HasPrefix(rest, `"`) {
		end := strings.Index(rest[1:], `"`)
		if end < 0 {
			return "", ""
		}
		return rest[1 : end+1], strings.TrimSpace(rest[end+2:])
	}
	target, text, _ := strings.Cut(rest, " ")
	return target, strings.TrimSpace(text)
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
