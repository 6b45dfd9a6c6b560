package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/xiaomian/internal/api/handlers"
	"github.com/yoockh/xiaomian/internal/api/middleware"
)

type Deps struct {
	Authn middleware.Authenticator

	System    *handlers.SystemHandler
	Auth      *handlers.AuthHandler
	Task      *handlers.TaskHandler
	Interview *handlers.InterviewHandler
	Chat      *handlers.ChatHandler
	Resume    *handlers.ResumeHandler
	AI        *handlers.AIHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/", d.System.Root)

	api := r.Group("/api")
	api.GET("/health", d.System.Health)

	api.POST("/auth/register", d.Auth.Register)
	api.POST("/auth/login", d.Auth.Login)

	// Protected routes (JWT)
	auth := api.Group("/")
	auth.Use(middleware.JWTAuth(d.Authn))

	auth.GET("/auth/me", d.Auth.Me)
	auth.PUT("/auth/update-positions", d.Auth.UpdatePositions)

	tasks := auth.Group("/tasks")
	tasks.GET("", d.Task.List)
	tasks.POST("", d.Task.Create)
	tasks.POST("/generate-position-tasks", d.Task.GeneratePositionTasks)
	tasks.GET("/:task_id", d.Task.Get)
	tasks.DELETE("/:task_id", d.Task.Delete)
	tasks.POST("/:task_id/complete", d.Task.Complete)
	tasks.GET("/:task_id/notes", d.Task.ListNotes)
	tasks.POST("/:task_id/notes", d.Task.CreateNote)
	tasks.DELETE("/:task_id/notes/:note_id", d.Task.DeleteNote)
	tasks.GET("/:task_id/highlights", d.Task.ListHighlights)
	tasks.POST("/:task_id/highlights", d.Task.CreateHighlight)
	tasks.DELETE("/:task_id/highlights/:highlight_id", d.Task.DeleteHighlight)
	tasks.GET("/:task_id/leetcode", d.Task.PracticeProblem)

	interviews := auth.Group("/interviews")
	interviews.GET("", d.Interview.List)
	interviews.POST("", d.Interview.Create)
	interviews.GET("/export", d.Interview.Export)
	interviews.GET("/:interview_id", d.Interview.Get)
	interviews.POST("/:interview_id/submit", d.Interview.Submit)
	interviews.GET("/:interview_id/feedback", d.Interview.Feedback)
	interviews.POST("/:interview_id/transcribe", d.Interview.Transcribe)

	chat := auth.Group("/chat")
	chat.POST("/message", d.Chat.Message)
	chat.GET("/greeting", d.Chat.Greeting)
	chat.GET("/history/:session_id", d.Chat.History)
	chat.GET("/sessions", d.Chat.Sessions)
	chat.POST("/save-session", d.Chat.SaveSession)
	chat.POST("/feedback", d.Chat.Feedback)
	chat.POST("/update-analytics/:interview_id", d.Chat.UpdateAnalytics)

	resume := auth.Group("/resume")
	resume.POST("/upload", d.Resume.Upload)
	resume.GET("", d.Resume.Active)
	resume.GET("/file", d.Resume.FileURL)
	resume.POST("/generate-questions", d.Resume.GenerateQuestions)

	ai := auth.Group("/ai")
	ai.POST("/ask", d.AI.Ask)
	ai.POST("/generate-questions", d.AI.GenerateQuestions)
	ai.GET("/learning-path", d.AI.LearningPath)
	ai.POST("/analyze-style", d.AI.AnalyzeStyle)

	admin := ai.Group("/knowledge")
	admin.Use(middleware.RequireAdmin())
	admin.POST("", d.AI.AddKnowledge)
	admin.POST("/populate", d.AI.Populate)
}
