package repository

import (
	"github.com/tnqbao/gau-job-orchestrator/config"
	"github.com/tnqbao/gau-job-orchestrator/infra"
)

type Repository struct {
	JobRepo JobStore
}

var repository *Repository

// InitRepository picks the job store matching JOB_STORE_DRIVER.
func InitRepository(cfg *config.Config, infra *infra.Infra) *Repository {
	env := cfg.EnvConfig

	var store JobStore
	switch env.Job.StoreDriver {
	case config.StoreDriverRedis:
		store = NewJobRedisRepository(infra.Redis.Client, env.Job.ResultTTL)
	case config.StoreDriverPostgres:
		pg := NewJobPostgresRepository(infra.Postgres.DB)
		if err := pg.Migrate(); err != nil {
			panic("Failed to migrate jobs table: " + err.Error())
		}
		store = pg
	default:
		store = NewJobMemoryRepository()
	}

	repository = &Repository{JobRepo: store}
	return repository
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}
