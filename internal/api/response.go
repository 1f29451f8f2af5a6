package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IT-HUSET/openclaw-guard/internal/guard"
)

// Success sends a JSON success response.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Error sends a JSON error response.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// VerdictResponse sends a verdict as JSON. A nil verdict is the
// pass-through case and is made explicit on the wire.
func VerdictResponse(c *gin.Context, v *guard.Verdict) {
	if v == nil {
		c.JSON(http.StatusOK, gin.H{"action": guard.ActionPass})
		return
	}
	c.JSON(http.StatusOK, v)
}
