// Package signals wires process signals to command lifecycles.
package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/endorses/colorcat/internal/pkg/constants"
	"github.com/endorses/colorcat/internal/pkg/logger"
)

// SetupHandler cancels ctx on SIGINT or SIGTERM. The returned cleanup
// function stops delivery and must be called once the command is done.
func SetupHandler(ctx context.Context, cancel context.CancelFunc) (cleanup func()) {
	sigCh := make(chan os.Signal, constants.SignalChannelBuffer)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, initiating shutdown", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return func() {
		signal.Stop(sigCh)
		cancel()
		<-done
	}
}

// HandleReload calls onReload for every SIGHUP until ctx is done. It is how
// "cc rules watch" re-reads the rules on demand.
func HandleReload(ctx context.Context, onReload func()) (cleanup func()) {
	sigCh := make(chan os.Signal, constants.SignalChannelBuffer)
	signal.Notify(sigCh, syscall.SIGHUP)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case sig := <-sigCh:
				logger.Info("Received signal, reloading color filters", "signal", sig.String())
				onReload()
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(stop)
		<-done
	}
}
