package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"redirect-agent-backend/internal/agent"
	"redirect-agent-backend/internal/cards"
	"redirect-agent-backend/internal/catalog"
	"redirect-agent-backend/internal/config"
	"redirect-agent-backend/internal/conversation"
	"redirect-agent-backend/internal/logging"
	"redirect-agent-backend/internal/redirect"
	"redirect-agent-backend/internal/server"
	"redirect-agent-backend/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Addr())
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
			}
			return runServer(ctx, cfg, ln, log)
		},
	}
}

// runServer wires the model client, session store and HTTP server, serves on
// ln until ctx is cancelled, then shuts down.
func runServer(ctx context.Context, cfg config.Config, ln net.Listener, log *logging.Logger) error {
	if cfg.Model.APIKey == "" {
		ln.Close()
		return fmt.Errorf("AZURE_OPENAI_API_KEY is not set")
	}

	svcCatalog, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		ln.Close()
		return err
	}
	prompt, err := agent.LoadPromptSpec(cfg.PromptFile)
	if err != nil {
		ln.Close()
		return err
	}

	st, err := store.Open(ctx, cfg.Session, store.Options{
		MaxMessages: conversation.MaxMessages(cfg.Model.MemoryK),
		TTL:         cfg.Session.TTL,
	}, log.Sub("store"))
	if err != nil {
		ln.Close()
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("session store close failed")
		}
	}()

	httpClient := agent.NewHTTPClient(cfg.Model.Retries, cfg.Model.Timeout, log.Sub("http"))
	llm := agent.NewOpenAICompleter(agent.NewOpenAIClient(cfg.Model, httpClient), cfg.Model, log.Sub("model"))
	ag := agent.New(llm, prompt, svcCatalog, cfg.Model.MemoryK, log.Sub("agent"))

	defaults := cards.DefaultDefaults()
	defaults.OutOfScopeCode = cfg.OutOfScopeErrorCode
	svc := redirect.NewService(st, ag, defaults, log.Sub("redirect"))

	srv := server.NewServer(cfg, svc, log.Sub("http"))
	httpServer := &http.Server{
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", ln.Addr().String()).
			Str("env", cfg.Env).
			Str("model", cfg.Model.Name).
			Str("session_backend", cfg.Session.Backend).
			Int("memory_k", cfg.Model.MemoryK).
			Msg("redirect agent listening")
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
