// Command atelier runs the generation server.
//
// Providers are registered from whichever credentials are present in
// the environment; the data directory, listen address, and default
// model are env-configured as well. A .env file in the working
// directory is honored.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Ensure API keys are loaded
	_ "github.com/joho/godotenv/autoload"

	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"

	"github.com/atelier-ai/atelier/httpapi"
	"github.com/atelier-ai/atelier/pkg/slogx"
	"github.com/atelier-ai/atelier/provider/anthropic"
	"github.com/atelier-ai/atelier/provider/gemini"
	"github.com/atelier-ai/atelier/provider/models"
	"github.com/atelier-ai/atelier/provider/openai"
	"github.com/atelier-ai/atelier/store"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelInfo}),
	))
}

func main() {
	if err := mainE(context.Background()); err != nil {
		slog.Error("server exited", slogx.Error(err))
		os.Exit(1)
	}
}

func mainE(ctx context.Context) error {
	registerModels()
	if len(models.Names()) == 0 {
		return errors.New("no provider credentials configured: set OPENAI_API_KEY, ANTHROPIC_API_KEY, or GEMINI_API_KEY")
	}

	defaultModel := envOr("ATELIER_MODEL", "gpt-4o-mini")
	if _, ok := models.Get(defaultModel); !ok {
		defaultModel = models.Names()[0]
		slog.Warn("default model is not registered, falling back", slog.String("model", defaultModel))
	}

	var st *store.Store
	if dir := os.Getenv("ATELIER_DATA_DIR"); dir != "" {
		var err error
		st, err = store.Open(dir)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	addr := envOr("ATELIER_ADDR", ":8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewRouter(defaultModel, st),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", addr), slog.String("default_model", defaultModel))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func registerModels() {
	if os.Getenv("OPENAI_API_KEY") != "" {
		models.Add(openai.GPT4oMini())
		models.Add(openai.GPT4o())
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		models.Add(anthropic.Claude35Sonnet())
		models.Add(anthropic.Claude35Haiku())
	}
	if os.Getenv("GEMINI_API_KEY") != "" {
		models.Add(gemini.Flash())
		models.Add(gemini.Pro())
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
