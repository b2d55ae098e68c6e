package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-job-orchestrator/action"
	"github.com/tnqbao/gau-job-orchestrator/config"
	"github.com/tnqbao/gau-job-orchestrator/consumer/worker"
	infraPkg "github.com/tnqbao/gau-job-orchestrator/infra"
	"github.com/tnqbao/gau-job-orchestrator/repository"
)

func main() {
	err := godotenv.Load("../staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	if err := cfg.EnvConfig.RequireSharedDrivers(); err != nil {
		log.Fatalf("%v; use the embedded worker (WORKER_EMBEDDED=true on the HTTP server) instead", err)
	}

	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(cfg, infra)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := action.NewDefaultRegistry(infra.Mailer)
	executor := worker.NewExecutor(registry, repo.JobRepo, infra.Logger,
		worker.WithEventPublisher(infra.JobEvents()),
	)
	pool := worker.NewPool(infra.Broker, executor, infra.Logger,
		worker.WithConcurrency(cfg.EnvConfig.Worker.Concurrency),
	)

	infra.Logger.InfoWithContextf(ctx, "[Consumer] Listening on queue %s with actions %v", cfg.EnvConfig.Job.Queue, registry.Names())

	if err := pool.Run(ctx, 30*time.Second); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "[Consumer] Worker pool stopped with error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := infra.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Consumer exited properly")
}
