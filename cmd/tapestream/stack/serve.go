package stack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ShutdownTimeout bounds how long in-flight requests get on shutdown.
const ShutdownTimeout = 15 * time.Second

// Service is a server run by Serve.
type Service struct {
	Name     string
	Run      func() error
	Shutdown func(ctx context.Context) error
}

// Serve runs services and the janitor until a service fails, ctx is done or
// the process receives SIGINT or SIGTERM, then shuts the services down. The
// Stack itself stays open for the caller to Close.
func (s *Stack) Serve(ctx context.Context, services ...Service) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.RunJanitor(ctx)

	errChan := make(chan error, len(services))
	for _, svc := range services {
		go func() {
			if err := svc.Run(); err != nil {
				errChan <- fmt.Errorf("%s error: %w", svc.Name, err)
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errChan:
		s.logger.Error("service failed, shutting down", "error", runErr)
	case <-ctx.Done():
		s.logger.Info("shutting down")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	errs := []error{runErr}
	for _, svc := range services {
		if err := svc.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down %s: %w", svc.Name, err))
		}
	}
	return errors.Join(errs...)
}
