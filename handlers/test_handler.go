package handlers

import (
	"net/http"

	"psblearn/services"

	"github.com/gin-gonic/gin"
)

type TestHandler struct {
	catalog   *services.TestCatalog
	directory *services.DirectoryService
}

func NewTestHandler(catalog *services.TestCatalog, directory *services.DirectoryService) *TestHandler {
	return &TestHandler{catalog: catalog, directory: directory}
}

// ListTests serves GET /courses/:course_id/tests for enrolled students.
func (h *TestHandler) ListTests(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	courseID, ok := parseID(c, "course_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.directory.RequireEnrollment(ctx, userID, courseID); err != nil {
		respondError(c, err)
		return
	}

	items, err := h.catalog.ListPublishedTests(ctx, courseID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetTest serves the student view: missing or unpublished is 404 before
// enrollment is checked.
func (h *TestHandler) GetTest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	testID, ok := parseID(c, "test_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	test, err := h.catalog.GetTestForStudent(ctx, testID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.directory.RequireEnrollment(ctx, userID, test.CourseID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

func (h *TestHandler) CreateTest(c *gin.Context) {
	courseID, ok := parseID(c, "course_id")
	if !ok {
		return
	}

	var req services.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	test, err := h.catalog.CreateTest(c.Request.Context(), courseID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, test)
}

func (h *TestHandler) AddQuestion(c *gin.Context) {
	testID, ok := parseID(c, "test_id")
	if !ok {
		return
	}

	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	test, err := h.catalog.AddQuestion(c.Request.Context(), testID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, test)
}

func (h *TestHandler) GetAuthoring(c *gin.Context) {
	testID, ok := parseID(c, "test_id")
	if !ok {
		return
	}

	test, err := h.catalog.GetTestForAuthor(c.Request.Context(), testID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

func (h *TestHandler) SetPublication(c *gin.Context) {
	testID, ok := parseID(c, "test_id")
	if !ok {
		return
	}

	var req services.PublicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	test, err := h.catalog.SetPublished(c.Request.Context(), testID, *req.IsPublished)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

func (h *TestHandler) DeleteTest(c *gin.Context) {
	testID, ok := parseID(c, "test_id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteTest(c.Request.Context(), testID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test deleted successfully"})
}

func (h *TestHandler) DeleteQuestion(c *gin.Context) {
	questionID, ok := parseID(c, "question_id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteQuestion(c.Request.Context(), questionID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}
