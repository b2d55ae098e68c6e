package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-job-orchestrator/action"
	"github.com/tnqbao/gau-job-orchestrator/config"
	"github.com/tnqbao/gau-job-orchestrator/consumer/worker"
	"github.com/tnqbao/gau-job-orchestrator/http/controller"
	routes "github.com/tnqbao/gau-job-orchestrator/http/route"
	infraPkg "github.com/tnqbao/gau-job-orchestrator/infra"
	"github.com/tnqbao/gau-job-orchestrator/repository"
	"golang.org/x/sync/errgroup"
)

func main() {
	err := godotenv.Load("staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	env := cfg.EnvConfig
	if !env.Worker.Embedded {
		if err := env.RequireSharedDrivers(); err != nil {
			log.Fatalf("%v; set WORKER_EMBEDDED=true to run the worker in this process", err)
		}
	}

	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(cfg, infra)
	registry := action.NewDefaultRegistry(infra.Mailer)

	ctrl := controller.NewController(cfg, infra, repo, registry)
	router := routes.SetupRouter(ctrl)

	srv := &http.Server{
		Addr:              ":" + env.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Println("HTTP Server started on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if env.Worker.Embedded {
		executor := worker.NewExecutor(registry, repo.JobRepo, infra.Logger,
			worker.WithEventPublisher(infra.JobEvents()),
		)
		pool := worker.NewPool(infra.Broker, executor, infra.Logger,
			worker.WithConcurrency(env.Worker.Concurrency),
		)
		g.Go(func() error {
			return pool.Run(gctx, 30*time.Second)
		})
	}

	if err := g.Wait(); err != nil {
		log.Printf("Server stopped with error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := infra.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server exited properly")
}
