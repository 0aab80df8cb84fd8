package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/client"
	"github.com/Tyrowin/relaychat/internal/logging"
	"github.com/Tyrowin/relaychat/internal/tui"
)

func main() {
	addr := flag.String("addr", "ws://localhost:6543/ws", "relay server WebSocket URL")
	origin := flag.String("origin", "http://localhost:6543", "Origin header sent with the handshake")
	logFile := flag.String("log-file", "relaychat-client.log", "file the client logs to")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	if err := run(*addr, *origin, *logFile, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "relaychat client:", err)
		os.Exit(1)
	}
}

func run(addr, origin, logFile, logLevel string) error {
	logger, err := logging.NewFile(logLevel, logging.FormatJSON, logFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logging.WithContext(logger, "relaychat", zap.String("server", addr))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, addr, origin, log)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ui, err := tui.New(c, addr)
	if err != nil {
		return err
	}
	defer ui.Close()

	return ui.Run()
}
