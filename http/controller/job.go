package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-job-orchestrator/entity"
	"github.com/tnqbao/gau-job-orchestrator/http/controller/dto"
	"github.com/tnqbao/gau-job-orchestrator/service"
	"github.com/tnqbao/gau-job-orchestrator/utils"
)

// submit reads the raw JSON body and dispatches it. It writes the error
// response itself and returns ok=false on failure.
func (ctrl *Controller) submit(c *gin.Context, actionName string) (uuid.UUID, bool) {
	ctx := c.Request.Context()

	body, err := c.GetRawData()
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to read request body: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return uuid.Nil, false
	}
	if len(body) > 0 && !json.Valid(body) {
		utils.JSON400(c, "Request body must be valid JSON")
		return uuid.Nil, false
	}

	id, err := ctrl.Dispatcher.Submit(ctx, actionName, json.RawMessage(body))
	if err == nil {
		return id, true
	}

	var subErr *service.SubmissionError
	switch {
	case errors.Is(err, entity.ErrUnknownAction):
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Job] Unknown action %q", actionName)
		utils.JSON404(c, "Unknown action: "+actionName)
	case errors.Is(err, entity.ErrInvalidPayload):
		utils.JSON422(c, err.Error())
	case errors.As(err, &subErr):
		utils.JSON503(c, "Job could not be submitted, try again later")
	default:
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Unexpected submit error: %v", err)
		utils.JSON500(c, "Internal server error")
	}
	return uuid.Nil, false
}

// loadJob parses the id path param and reads the record.
func (ctrl *Controller) loadJob(c *gin.Context, param string) (*entity.JobRecord, bool) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		utils.JSON400(c, "Invalid job id")
		return nil, false
	}

	rec, err := ctrl.Status.GetStatus(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrJobNotFound) {
			utils.JSON404(c, "Job not found")
			return nil, false
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to read job %s: %v", id, err)
		utils.JSON500(c, "Failed to read job status")
		return nil, false
	}
	return rec, true
}

func (ctrl *Controller) SubmitJob(c *gin.Context) {
	id, ok := ctrl.submit(c, c.Param("action"))
	if !ok {
		return
	}
	c.JSON(http.StatusAccepted, dto.SubmitJobResponseDTO{JobID: id.String()})
}

func (ctrl *Controller) GetJob(c *gin.Context) {
	rec, ok := ctrl.loadJob(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.NewJobStatusResponse(rec))
}

func (ctrl *Controller) ListActions(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ActionListResponseDTO{Actions: ctrl.Registry.Names()})
}
