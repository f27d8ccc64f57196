package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/calebsnider/deckhand/internal/config"
	"github.com/calebsnider/deckhand/internal/ui"
)

// loadConfig resolves the project configuration or exits.
func loadConfig(userMode bool) *config.Config {
	cfg, err := config.Load(userMode)
	if err != nil {
		ui.Fatal("%v", err)
	}
	return cfg
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		ui.Warning("Received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}
