package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"psblearn/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func respondError(c *gin.Context, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch services.Kind(err) {
	case services.ErrNotFound:
		status, kind = http.StatusNotFound, "not_found"
	case services.ErrForbidden:
		status, kind = http.StatusForbidden, "forbidden"
	case services.ErrInvalidState:
		status, kind = http.StatusBadRequest, "invalid_state"
	case services.ErrInvalidInput:
		status, kind = http.StatusBadRequest, "invalid_input"
	case services.ErrUnauthenticated:
		status, kind = http.StatusUnauthorized, "unauthenticated"
	case services.ErrConflict:
		status, kind = http.StatusConflict, "conflict"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": message, "kind": kind})
}

// respondBindError renders request decoding failures. Validation failures
// list the offending fields and the rule that failed.
func respondBindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "kind": "invalid_input", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "invalid_input"})
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param, "kind": "invalid_input"})
		return 0, false
	}
	return uint(id), true
}

func currentUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated", "kind": "unauthenticated"})
		return 0, false
	}
	id, ok := userID.(uint)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated", "kind": "unauthenticated"})
		return 0, false
	}
	return id, true
}
