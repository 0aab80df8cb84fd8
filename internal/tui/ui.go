package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jroimartin/gocui"

	"github.com/Tyrowin/relaychat/internal/chat"
)

const commandQueue = 64

const (
	messagesView = "messages"
	statusView   = "status"
	inputView    = "input"
	helpView     = "help"
)

// Session is what the UI needs from a connected client.
type Session interface {
	Chatter
	Messages() <-chan chat.Envelope
	Identity() (chat.Identity, bool)
}

// ChatUI is the gocui front end for one connection.
type ChatUI struct {
	gui      *gocui.Gui
	session  Session
	server   string
	showHelp bool
	commands chan Command

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the UI on the current terminal. server is only displayed.
func New(session Session, server string) (*ChatUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ui := &ChatUI{
		gui:      g,
		session:  session,
		server:   server,
		commands: make(chan Command, commandQueue),
		ctx:      ctx,
		cancel:   cancel,
	}
	g.Cursor = true
	g.SetManagerFunc(ui.layout)
	return ui, nil
}

func (ui *ChatUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	msgHeight := maxY - 6

	if v, err := g.SetView(messagesView, 0, 0, maxX-1, msgHeight); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Messages"
		v.Wrap = true
		v.Autoscroll = true
		fmt.Fprintln(v, "Type /help for commands. Log in with /login <nick> <password>.")
	}

	if v, err := g.SetView(statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Status"
		fmt.Fprint(v, ui.statusLine())
	}

	if v, err := g.SetView(inputView, 0, msgHeight+3, maxX-1, maxY-1); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Input"
		v.Editable = true
		v.Wrap = true
		if _, err := g.SetCurrentView(inputView); err != nil {
			return err
		}
	}

	if ui.showHelp {
		if v, err := g.SetView(helpView, maxX/8, maxY/8, maxX*7/8, maxY*7/8); err != nil {
			if !errors.Is(err, gocui.ErrUnknownView) {
				return err
			}
			v.Title = "Help"
			fmt.Fprintln(v, helpText)
		}
	} else if err := g.DeleteView(helpView); err != nil && !errors.Is(err, gocui.ErrUnknownView) {
		return err
	}

	return nil
}

func (ui *ChatUI) statusLine() string {
	if id, ok := ui.session.Identity(); ok {
		return fmt.Sprintf("Connected to %s | Logged in as %s | Ctrl-H: Help", ui.server, id.Nickname)
	}
	return fmt.Sprintf("Connected to %s | Not logged in | Ctrl-H: Help", ui.server)
}

func (ui *ChatUI) keybindings() error {
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			return gocui.ErrQuit
		}); err != nil {
		return err
	}

	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlH, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			ui.showHelp = !ui.showHelp
			return nil
		}); err != nil {
		return err
	}

	return ui.gui.SetKeybinding(inputView, gocui.KeyEnter, gocui.ModNone, ui.handleInput)
}

func (ui *ChatUI) handleInput(_ *gocui.Gui, v *gocui.View) error {
	line := strings.TrimSpace(v.Buffer())
	v.Clear()
	if err := v.SetCursor(0, 0); err != nil {
		return err
	}

	cmd, err := Parse(line)
	if errors.Is(err, ErrEmptyInput) {
		return nil
	}
	if err != nil {
		ui.print(err.Error())
		return nil
	}
	if cmd.Kind == KindQuit {
		return gocui.ErrQuit
	}

	// Login and registration block on the server, so commands run on the
	// worker rather than the gocui loop.
	select {
	case ui.commands <- cmd:
	default:
		ui.print("error: too many pending commands")
	}
	return nil
}

// runCommands dispatches commands one at a time in the order they were
// entered until cmds is closed or ctx ends.
func runCommands(ctx context.Context, c Chatter, cmds <-chan Command, emit func([]string, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			emit(dispatch(ctx, c, cmd))
		}
	}
}

func (ui *ChatUI) emit(lines []string, err error) {
	if err != nil {
		ui.print("error: " + err.Error())
		return
	}
	ui.print(lines...)
	ui.refreshStatus()
}

// print appends lines to the message pane from any goroutine.
func (ui *ChatUI) print(lines ...string) {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(messagesView)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Fprintln(v, line)
		}
		return nil
	})
}

func (ui *ChatUI) refreshStatus() {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(statusView)
		if err != nil {
			return err
		}
		v.Clear()
		fmt.Fprint(v, ui.statusLine())
		return nil
	})
}

// pump renders inbound envelopes until the connection ends.
func (ui *ChatUI) pump() {
	for env := range ui.session.Messages() {
		ui.print(Format(env))
	}
	select {
	case <-ui.ctx.Done():
	default:
		ui.print("*** connection to server lost ***")
		ui.refreshStatus()
	}
}

// Run blocks until the user quits.
func (ui *ChatUI) Run() error {
	if err := ui.keybindings(); err != nil {
		return err
	}
	go ui.pump()
	go runCommands(ui.ctx, ui.session, ui.commands, ui.emit)

	if err := ui.gui.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

// Close restores the terminal.
func (ui *ChatUI) Close() {
	ui.cancel()
	ui.gui.Close()
}
