package handlers

import (
	"net/http"

	"psblearn/services"

	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	engine    *services.AttemptEngine
	history   *services.AttemptHistory
	catalog   *services.TestCatalog
	directory *services.DirectoryService
}

func NewAttemptHandler(engine *services.AttemptEngine, history *services.AttemptHistory, catalog *services.TestCatalog, directory *services.DirectoryService) *AttemptHandler {
	return &AttemptHandler{
		engine:    engine,
		history:   history,
		catalog:   catalog,
		directory: directory,
	}
}

func (h *AttemptHandler) Submit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	testID, ok := parseID(c, "test_id")
	if !ok {
		return
	}

	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.engine.Submit(c.Request.Context(), testID, userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AttemptHandler) MyAttempts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	testID, ok := parseID(c, "test_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	courseID, err := h.catalog.TestCourse(ctx, testID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.directory.RequireEnrollment(ctx, userID, courseID); err != nil {
		respondError(c, err)
		return
	}

	items, err := h.history.ListMyAttempts(ctx, testID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *AttemptHandler) TestAttempts(c *gin.Context) {
	testID, ok := parseID(c, "test_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.catalog.TestCourse(ctx, testID); err != nil {
		respondError(c, err)
		return
	}

	items, err := h.history.ListTestAttempts(ctx, testID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}
