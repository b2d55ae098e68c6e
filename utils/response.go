package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func jsonError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func JSON400(c *gin.Context, message string) { jsonError(c, http.StatusBadRequest, message) }
func JSON404(c *gin.Context, message string) { jsonError(c, http.StatusNotFound, message) }
func JSON422(c *gin.Context, message string) { jsonError(c, http.StatusUnprocessableEntity, message) }
func JSON500(c *gin.Context, message string) { jsonError(c, http.StatusInternalServerError, message) }
func JSON503(c *gin.Context, message string) { jsonError(c, http.StatusServiceUnavailable, message) }

// AbortJSON401 writes the error and stops the handler chain.
func AbortJSON401(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
