package handlers

import (
	"net/http"

	"psblearn/services"

	"github.com/gin-gonic/gin"
)

type CourseHandler struct {
	directory *services.DirectoryService
}

func NewCourseHandler(directory *services.DirectoryService) *CourseHandler {
	return &CourseHandler{directory: directory}
}

func (h *CourseHandler) CreateCourse(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	course, err := h.directory.CreateCourse(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, course)
}

func (h *CourseHandler) Enroll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	courseID, ok := parseID(c, "course_id")
	if !ok {
		return
	}

	course, err := h.directory.Enroll(c.Request.Context(), userID, courseID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}
