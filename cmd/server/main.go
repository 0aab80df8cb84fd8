package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/logging"
	"github.com/Tyrowin/relaychat/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "relaychat server:", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}

	logger, err := logging.New(config.LogLevel, config.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log := logging.WithContext(logger, "relaychat", zap.String("port", config.Port))
	log.Info("starting relaychat server")

	srv, err := server.New(config, log)
	if err != nil {
		return err
	}
	srv.StartHub()

	httpServer := server.CreateServer(config.Port, srv.SetupRoutes())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, log)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if err != nil {
			_ = srv.Shutdown(shutdownTimeout)
			return err
		}
		return nil
	case sig := <-sigCh:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	var errs []error
	if err := server.ShutdownServer(httpServer, shutdownTimeout, log); err != nil {
		errs = append(errs, err)
	}
	if err := srv.Shutdown(shutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := <-errCh; err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
