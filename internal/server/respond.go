package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(c *gin.Context, code int, v any) {
	c.JSON(code, v)
}

func writeError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

func writeValidation(c *gin.Context, errs []fieldError) {
	c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
}

// writeReadError is the page-level error state: the client offers a retry.
func writeReadError(c *gin.Context, err error) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retry": true})
}
