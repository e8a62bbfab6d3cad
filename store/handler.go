package store

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/phanxgames/plaque"
)

// maxTemplateBytes bounds request bodies; previews are inline data URLs.
const maxTemplateBytes = 16 << 20

// Module serves the template CRUD routes.
type Module struct {
	repo  *Repository
	cache ListCache
}

// NewModule wraps repo. cache may be nil.
func NewModule(repo *Repository, cache ListCache) *Module {
	return &Module{repo: repo, cache: cache}
}

// RegisterRoutes opens the database and optional redis cache from the
// environment and mounts /templates on router.
func RegisterRoutes(router gin.IRouter) (*Module, error) {
	db, err := OpenDatabaseFromEnv()
	if err != nil {
		return nil, err
	}
	repo, err := NewRepository(db)
	if err != nil {
		return nil, err
	}
	client, err := NewRedisClientFromEnv()
	if err != nil {
		log.Printf("store: list cache disabled: %v", err)
	}
	m := NewModule(repo, NewRedisListCache(client))
	m.Register(router)
	return m, nil
}

// Register mounts the routes under /templates.
func (m *Module) Register(router gin.IRouter) {
	group := router.Group("/templates")
	group.POST("", m.handleCreate)
	group.GET("", m.handleList)
	group.GET("/:id", m.handleGet)
	group.PUT("/:id", m.handleUpdate)
	group.DELETE("/:id", m.handleDelete)
}

func (m *Module) handleCreate(c *gin.Context) {
	t, ok := bindTemplate(c)
	if !ok {
		return
	}
	created, err := m.repo.Create(c.Request.Context(), t)
	if err != nil {
		writeError(c, err)
		return
	}
	m.invalidate(c)
	c.JSON(http.StatusCreated, gin.H{"template": created})
}

func (m *Module) handleList(c *gin.Context) {
	ctx := c.Request.Context()
	if m.cache != nil {
		if list, ok := m.cache.Get(ctx); ok {
			c.JSON(http.StatusOK, gin.H{"templates": list})
			return
		}
	}
	list, err := m.repo.List(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	if m.cache != nil {
		m.cache.Set(ctx, list)
	}
	c.JSON(http.StatusOK, gin.H{"templates": list})
}

func (m *Module) handleGet(c *gin.Context) {
	t, err := m.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": t})
}

func (m *Module) handleUpdate(c *gin.Context) {
	t, ok := bindTemplate(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if t.ID != "" && t.ID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id in body does not match path"})
		return
	}
	t.ID = id
	updated, err := m.repo.Update(c.Request.Context(), t)
	if err != nil {
		writeError(c, err)
		return
	}
	m.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"template": updated})
}

func (m *Module) handleDelete(c *gin.Context) {
	if err := m.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	m.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (m *Module) invalidate(c *gin.Context) {
	if m.cache != nil {
		m.cache.Invalidate(c.Request.Context())
	}
}

func bindTemplate(c *gin.Context) (plaque.Template, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxTemplateBytes)
	var t plaque.Template
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template payload"})
		return plaque.Template{}, false
	}
	t.Name = strings.TrimSpace(t.Name)
	t.ModelURL = strings.TrimSpace(t.ModelURL)
	return t, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
	case errors.Is(err, ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), ErrInvalid.Error()+": ")})
	default:
		log.Printf("store: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s failed", requestAction(c))})
	}
}

func requestAction(c *gin.Context) string {
	switch c.Request.Method {
	case http.MethodPost:
		return "create template"
	case http.MethodPut:
		return "update template"
	case http.MethodDelete:
		return "delete template"
	default:
		return "load templates"
	}
}
