package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"restack/internal/config"
	"restack/internal/convert"
	llmclient "restack/internal/llm/client"
	llm "restack/internal/llm/middleware"
	"restack/internal/logging"
	"restack/internal/server"
	"restack/internal/workspace"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}
	logging.Init(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	log := logrus.WithFields(logrus.Fields{
		"env":  cfg.Env,
		"mode": cfg.Mode,
	})

	ws, err := workspace.NewManager(cfg.WorkspaceRoot)
	if err != nil {
		log.Fatalf("workspace manager: %v", err)
	}
	if err := ws.Init(); err != nil {
		log.Fatalf("workspace root: %v", err)
	}

	ctx := context.Background()
	catalog := llmclient.DefaultCatalog()
	if err := catalog.CredentialError(cfg.LLM.Provider); err != nil {
		// The server still starts; the convert handler reports this per
		// request until the credential appears in the environment.
		log.WithError(err).Warn("model credential is not configured")
	}
	client, err := catalog.New(ctx, cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.TokenCap)
	if err != nil {
		log.Fatalf("llm client: %v", err)
	}
	client = llm.Wrap(client,
		llm.WithLogging(log),
		llm.Retry(cfg.LLM.Retries+1, 300*time.Millisecond),
		llm.RateLimit(cfg.LLM.RPS, cfg.LLM.Burst),
		llm.WithCache(cfg.LLM.CacheEntries),
	)
	defer client.Close()

	engine, err := convert.NewEngine(client, ws, cfg.Mode, log)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	router := server.NewRouter(server.Options{
		Engine:          engine,
		CredentialCheck: func() error { return catalog.CredentialError(cfg.LLM.Provider) },
		MaxUploadBytes:  cfg.MaxUploadBytes,
		StaticDir:       cfg.StaticDir,
		Log:             log,
	})
	srv := server.New(cfg.Port, router)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server: %v", err)
		}
	case sig := <-stop:
		log.Infof("received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}
}
