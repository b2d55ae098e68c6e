package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-job-orchestrator/http/controller"
	middlewares "github.com/tnqbao/gau-job-orchestrator/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}
	r.Use(middles.CORSMiddleware)

	r.GET("/healthz", ctrl.Health)

	apiRoutes := r.Group("/api/v1")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		apiRoutes.GET("/actions", ctrl.ListActions)

		jobRoutes := apiRoutes.Group("/jobs")
		{
			jobRoutes.POST("/:action", ctrl.SubmitJob)
			jobRoutes.GET("/:id", ctrl.GetJob)
		}
	}

	legacyRoutes := r.Group("/")
	{
		legacyRoutes.Use(middles.AuthMiddleware)

		legacyRoutes.POST("/send-email/", ctrl.SendEmail)
		legacyRoutes.POST("/long-task/", ctrl.StartLongTask)
		legacyRoutes.GET("/status/:task_id", ctrl.TaskStatus)
	}

	return r
}
