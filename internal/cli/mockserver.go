package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/five82/evalwatch/internal/mockapi"
)

func newMockServerCommand(opts *rootOptions) *cobra.Command {
	var (
		addr       string
		simulate   time.Duration
		noIdentity bool
	)
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve the evaluation API from in-memory fixtures",
		Long: "mock-server serves the evaluation REST API under " + mockapi.BasePath + " with fixture\n" +
			"data for ds-project-1, ds-project-2 and ds-project-3. Running evaluations\n" +
			"advance every --simulate interval.",
		Args: cobra.NoArgs,
		RunE: opts.withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			srv, err := mockapi.NewDefault(
				mockapi.WithLogger(e.logger),
				mockapi.WithIdentityRequired(!noIdentity))
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			return serveMock(cmd.Context(), ln, srv, simulate, e.logger)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().DurationVar(&simulate, "simulate", 10*time.Second, "advance running evaluations at this interval (0 disables)")
	cmd.Flags().BoolVar(&noIdentity, "no-identity", false, "accept requests without the kubeflow-userid header")
	return cmd
}

func serveMock(ctx context.Context, ln net.Listener, srv *mockapi.Server, simulate time.Duration, logger *zap.Logger) error {
	httpServer := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	simCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go srv.Simulate(simCtx, simulate)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	logger.Info("mock server listening",
		zap.String("url", "http://"+ln.Addr().String()+mockapi.BasePath),
		zap.Duration("simulate", simulate))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("mock server stopped")
	return nil
}
