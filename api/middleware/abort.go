package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/use-agent/elemshot/models"
)

// abort stops the chain with a capture-shaped error body.
func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.CaptureResponse{
		Success:  false,
		Files:    []models.CapturedFile{},
		Failures: []models.Failure{},
		Error:    &models.ErrorDetail{Code: code, Message: message},
	})
}
