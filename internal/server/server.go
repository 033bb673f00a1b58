package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tasklabs/taskmate/internal/server/sqlite"
	"github.com/tasklabs/taskmate/internal/store"
	"github.com/tasklabs/taskmate/internal/task"
)

// Options configure the bundled task store server.
type Options struct {
	Host   string
	Port   int
	APIKey string // when set, all routes require Authorization: Bearer <key>
}

// Server exposes the task table over the REST-ish API the rest adapter
// speaks, and broadcasts every mutation to websocket feed subscribers.
type Server struct {
	opts   Options
	store  *sqlite.Store
	hub    *hub
	router *gin.Engine
	http   *http.Server
}

func New(st *sqlite.Store, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		opts:   opts,
		store:  st,
		hub:    &hub{},
		router: router,
	}

	if opts.APIKey != "" {
		router.Use(s.requireAPIKey)
	}

	router.GET("/tasks", s.handleList)
	router.GET("/tasks/count", s.handleCount)
	router.GET("/tasks/:id", s.handleGet)
	router.POST("/tasks", s.handleCreate)
	router.PATCH("/tasks/:id", s.handleUpdate)
	router.DELETE("/tasks/:id", s.handleDelete)
	router.GET("/columns", s.handleColumns)
	router.GET("/ws", gin.WrapF(s.hub.handleWS))

	return s
}

// Router exposes the handler for in-process tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	s.http = &http.Server{Addr: addr, Handler: s.router}

	go func() {
		log.Printf("[server] listening on %s", addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[server] serve error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Server) Stop() error {
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			log.Printf("[server] shutdown error: %v", err)
		}
	}
	s.hub.closeAll()
	log.Printf("[server] stopped")
	return nil
}

func (s *Server) requireAPIKey(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	if auth != "Bearer "+s.opts.APIKey {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing api key"})
		return
	}
	c.Next()
}

func (s *Server) handleList(c *gin.Context) {
	// select=status serves the metrics histogram without shipping whole rows.
	if c.Query("select") == "status" {
		statuses, err := s.store.Statuses(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]gin.H, 0, len(statuses))
		for _, st := range statuses {
			out = append(out, gin.H{"status": st})
		}
		c.JSON(http.StatusOK, out)
		return
	}

	crit := task.DefaultCriteria()
	crit.Search = c.Query("search")
	crit.Status = task.Status(c.Query("status"))
	if crit.Status != "" && !crit.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", crit.Status)})
		return
	}
	if col := c.Query("order"); col != "" {
		crit.Order.Column = task.Column(col)
		if !crit.Order.Column.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown order column %q", col)})
			return
		}
	}
	crit.Order.Ascending = c.Query("dir") == "asc"

	tasks, err := s.store.List(c.Request.Context(), crit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleGet(c *gin.Context) {
	t, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleCreate(c *gin.Context) {
	var in task.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	t, err := s.store.Create(c.Request.Context(), in)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.hub.broadcast(store.ChangeEvent{Type: store.ChangeInsert, New: t})
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleUpdate(c *gin.Context) {
	var p task.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if p.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "patch must contain at least one field"})
		return
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
		return
	}

	t, err := s.store.Update(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	s.hub.broadcast(store.ChangeEvent{Type: store.ChangeUpdate, New: t})
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDelete(c *gin.Context) {
	id := c.Param("id")
	deleted, err := s.store.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Deleting an absent row still succeeds, but only real deletions are
	// worth announcing.
	if deleted {
		s.hub.broadcast(store.ChangeEvent{Type: store.ChangeDelete, Old: &task.Task{ID: id}})
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCount(c *gin.Context) {
	var f sqlite.CountFilter

	if v := c.Query("due"); v != "" {
		d, err := task.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.DueOn = &d
	}
	if v := c.Query("due_before"); v != "" {
		d, err := task.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.DueBefore = &d
	}
	if v := c.Query("exclude_status"); v != "" {
		f.ExcludeStatus = task.Status(v)
	}

	n, err := s.store.Count(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (s *Server) handleColumns(c *gin.Context) {
	cols, err := s.store.Columns(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": cols})
}
