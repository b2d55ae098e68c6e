package controller

import (
	"github.com/tnqbao/gau-job-orchestrator/action"
	"github.com/tnqbao/gau-job-orchestrator/config"
	"github.com/tnqbao/gau-job-orchestrator/infra"
	"github.com/tnqbao/gau-job-orchestrator/repository"
	"github.com/tnqbao/gau-job-orchestrator/service"
)

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository
	Registry   *action.Registry
	Dispatcher *service.Dispatcher
	Status     *service.StatusService
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository, registry *action.Registry) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}
	return &Controller{
		Config:     config,
		Infra:      infra,
		Repository: repo,
		Registry:   registry,
		Dispatcher: service.NewDispatcher(registry, repo.JobRepo, infra.Broker, infra.Logger),
		Status:     service.NewStatusService(repo.JobRepo),
	}
}
