// Package server exposes the HTTP API: session management, history,
// and the asynchronous query endpoints backed by the task queue.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"rag-backend/internal/db"
)

// Store is the slice of the persistence layer the API needs.
type Store interface {
	CreateSession(ctx context.Context, userAgent, ipAddress string) (uuid.UUID, error)
	SessionHistory(ctx context.Context, sessionID uuid.UUID, limit int) ([]db.Message, error)
	Enqueue(ctx context.Context, sessionID uuid.UUID, username, userID, question string) (uuid.UUID, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (*db.Task, error)
}

type Server struct {
	store Store
}

func New(store Store) *Server {
	return &Server{store: store}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.POST("/session", s.createSession)
	api.GET("/history/:session_id", s.getHistory)
	api.POST("/async-query", s.createAsyncQuery)
	api.GET("/async-result/:task_id", s.getAsyncResult)

	return router
}

func (s *Server) createSession(c *gin.Context) {
	sessionID, err := s.store.CreateSession(c.Request.Context(), c.GetHeader("User-Agent"), c.ClientIP())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID.String()})
}

func (s *Server) getHistory(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid session id"})
		return
	}
	messages, err := s.store.SessionHistory(c.Request.Context(), sessionID, 10)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load history")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	out := make([]gin.H, len(messages))
	for i, m := range messages {
		out[i] = gin.H{
			"role":      m.Role,
			"content":   m.Content,
			"timestamp": m.Timestamp.Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createAsyncQuery(c *gin.Context) {
	username := c.PostForm("username")
	userID := c.PostForm("user_id")
	question := c.PostForm("question")
	if len([]rune(question)) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Query too short"})
		return
	}

	ctx := c.Request.Context()
	var sessionID uuid.UUID
	if raw := c.PostForm("session_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid session id"})
			return
		}
		sessionID = parsed
	} else {
		created, err := s.store.CreateSession(ctx, c.GetHeader("User-Agent"), c.ClientIP())
		if err != nil {
			log.Error().Err(err).Msg("Failed to create session")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
			return
		}
		sessionID = created
	}

	taskID, err := s.store.Enqueue(ctx, sessionID, username, userID, question)
	if err != nil {
		log.Error().Err(err).Msg("Failed to enqueue task")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	log.Info().Str("task_id", taskID.String()).Str("user_id", userID).Msg("Created async task")

	c.JSON(http.StatusOK, gin.H{
		"task_id":    taskID.String(),
		"session_id": sessionID.String(),
		"status":     db.StatusPending,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) getAsyncResult(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid task id"})
		return
	}
	task, err := s.store.GetTask(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, db.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Task not found"})
			return
		}
		log.Error().Err(err).Msg("Failed to load task")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":      task.TaskID.String(),
		"session_id":   task.SessionID.String(),
		"created_at":   task.CreatedAt.Format(time.RFC3339),
		"started_at":   formatTime(task.StartedAt),
		"completed_at": formatTime(task.CompletedAt),
		"status":       task.Status,
		"username":     task.Username,
		"user_id":      task.UserID,
		"question":     task.Question,
		"answer":       task.Answer,
		"error":        task.Error,
	})
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
