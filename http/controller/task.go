package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-job-orchestrator/action"
	"github.com/tnqbao/gau-job-orchestrator/http/controller/dto"
)

func (ctrl *Controller) SendEmail(c *gin.Context) {
	id, ok := ctrl.submit(c, action.SendEmailAction)
	if !ok {
		return
	}
	c.JSON(http.StatusAccepted, dto.SendEmailResponseDTO{
		Message: "Email sending initiated!",
		TaskID:  id.String(),
	})
}

func (ctrl *Controller) StartLongTask(c *gin.Context) {
	id, ok := ctrl.submit(c, action.LongTaskAction)
	if !ok {
		return
	}
	c.JSON(http.StatusAccepted, dto.TaskIDResponseDTO{TaskID: id.String()})
}

func (ctrl *Controller) TaskStatus(c *gin.Context) {
	rec, ok := ctrl.loadJob(c, "task_id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.NewTaskStatusResponse(rec))
}
