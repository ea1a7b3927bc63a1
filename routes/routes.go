package routes

import (
	"log"
	"net/http"
	"strconv"

	"psblearn/handlers"
	"psblearn/middleware"
	"psblearn/models"
	"psblearn/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the CORS middleware and the bearer token
	},
}

type Handlers struct {
	Auth    *handlers.AuthHandler
	Course  *handlers.CourseHandler
	Test    *handlers.TestHandler
	Attempt *handlers.AttemptHandler
}

func SetupRoutes(
	router *gin.Engine,
	h Handlers,
	hub *services.Hub,
	directory *services.DirectoryService,
	tokens middleware.TokenParser,
) {
	student := middleware.RequireRole(models.RoleStudent)
	teacher := middleware.RequireRole(models.RoleTeacher)

	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(tokens))
		{
			protected.GET("/auth/profile", h.Auth.GetProfile)

			// Courses
			protected.POST("/courses", teacher, h.Course.CreateCourse)
			protected.POST("/courses/:course_id/enroll", student, h.Course.Enroll)

			// Test catalog
			protected.GET("/courses/:course_id/tests", student, h.Test.ListTests)
			protected.POST("/courses/:course_id/tests", teacher, h.Test.CreateTest)
			protected.GET("/tests/:test_id", student, h.Test.GetTest)
			protected.GET("/tests/:test_id/authoring", teacher, h.Test.GetAuthoring)
			protected.POST("/tests/:test_id/questions", teacher, h.Test.AddQuestion)
			protected.PATCH("/tests/:test_id/publication", teacher, h.Test.SetPublication)
			protected.DELETE("/tests/:test_id", teacher, h.Test.DeleteTest)
			protected.DELETE("/questions/:question_id", teacher, h.Test.DeleteQuestion)

			// Attempts
			protected.POST("/tests/:test_id/submit", student, h.Attempt.Submit)
			protected.GET("/tests/:test_id/attempts/my", student, h.Attempt.MyAttempts)
			protected.GET("/tests/:test_id/attempts", teacher, h.Attempt.TestAttempts)
		}
	}

	// Live course feed for teachers
	router.GET("/ws/courses/:course_id", middleware.AuthMiddleware(tokens), teacher, func(c *gin.Context) {
		courseID, err := strconv.ParseUint(c.Param("course_id"), 10, 64)
		if err != nil || courseID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course_id", "kind": "invalid_input"})
			return
		}
		exists, err := directory.CourseExists(c.Request.Context(), uint(courseID))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "kind": "internal"})
			return
		}
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "course not found", "kind": "not_found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] upgrade failed for course %d: %v", courseID, err)
			return
		}

		userID := c.GetUint("user_id")
		log.Printf("[WS] teacher %d subscribed to course %d", userID, courseID)
		hub.RegisterClient(conn, uint(courseID), userID)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
