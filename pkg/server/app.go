package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TokenRank/pkg/logger"
)

// Component is a long-running part of the process.
type Component interface {
	Start() error
	Stop(ctx context.Context) error
}

// named pairs a component with the name used in lifecycle logs.
type named struct {
	name string
	c    Component
}

// App starts components in registration order and stops them in reverse.
type App struct {
	log             *logger.Logger
	components      []named
	closers         []io.Closer
	shutdownTimeout time.Duration
}

func New(log *logger.Logger, shutdownTimeout time.Duration) *App {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &App{log: log, shutdownTimeout: shutdownTimeout}
}

// Add registers a component; nil components are ignored.
func (a *App) Add(name string, c Component) *App {
	if c != nil {
		a.components = append(a.components, named{name: name, c: c})
	}
	return a
}

// AddCloser registers infrastructure closed after every component stopped.
func (a *App) AddCloser(c io.Closer) *App {
	if c != nil {
		a.closers = append(a.closers, c)
	}
	return a
}

// Run starts everything and blocks until ctx is done or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	started := 0
	for _, n := range a.components {
		if err := n.c.Start(); err != nil {
			a.log.Error("component start failed", logger.String("component", n.name), logger.Error(err))
			a.stop(started)
			return fmt.Errorf("start %s: %w", n.name, err)
		}
		a.log.Info("component started", logger.String("component", n.name))
		started++
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case <-ctx.Done():
		a.log.Info("context cancelled, shutting down")
	}

	a.stop(started)
	return nil
}

func (a *App) stop(started int) {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	for i := started - 1; i >= 0; i-- {
		n := a.components[i]
		if err := n.c.Stop(ctx); err != nil {
			a.log.Warn("component stop error", logger.String("component", n.name), logger.Error(err))
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", logger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
