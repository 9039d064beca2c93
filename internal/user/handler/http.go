// Package handler exposes the user directory over HTTP.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-directory/internal/user/domain"
	"user-directory/internal/user/validation"
)

// maxBodyBytes bounds create/update request bodies.
const maxBodyBytes = 1 << 20

// Service is the directory surface used by the HTTP handler.
type Service interface {
	GetListCount(ctx context.Context, f domain.Filter) (int64, error)
	GetList(ctx context.Context, q domain.ListQuery) ([]*domain.User, error)
	GetOne(ctx context.Context, id int64) (*domain.User, error)
	AddOne(ctx context.Context, f domain.Fields) (*domain.User, error)
	UpdateOne(ctx context.Context, id int64, c domain.Change) (*domain.User, error)
	DeleteOne(ctx context.Context, id int64) (*domain.User, error)
}

// Handler serves the /users routes.
type Handler struct {
	svc Service
	log *zap.Logger
}

// NewHandler returns a Handler backed by svc. log may be nil.
func NewHandler(svc Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes registers the user routes on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	users := r.Group("/users")
	users.GET("/count", h.Count)
	users.GET("", h.List)
	users.GET("/:userId", h.Get)
	users.POST("", h.Create)
	users.PUT("/:userId", h.Update)
	users.DELETE("/:userId", h.Delete)
}

// Count handles GET /users/count.
func (h *Handler) Count(c *gin.Context) {
	q, err := validation.ListQuery(c.Request.URL.Query())
	if err != nil {
		h.fail(c, err)
		return
	}
	n, err := h.svc.GetListCount(c.Request.Context(), q.Filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	OK(c, gin.H{"count": n})
}

// List handles GET /users.
func (h *Handler) List(c *gin.Context) {
	q, err := validation.ListQuery(c.Request.URL.Query())
	if err != nil {
		h.fail(c, err)
		return
	}
	users, err := h.svc.GetList(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, toJSON(u))
	}
	OK(c, gin.H{"users": out})
}

// Get handles GET /users/:userId.
func (h *Handler) Get(c *gin.Context) {
	id, err := validation.Identifier(c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	u, err := h.svc.GetOne(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	OK(c, gin.H{"user": toJSON(u)})
}

// Create handles POST /users.
func (h *Handler) Create(c *gin.Context) {
	raw, err := decodeBody(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	fields, err := validation.CreatePayload(raw)
	if err != nil {
		h.fail(c, err)
		return
	}
	u, err := h.svc.AddOne(c.Request.Context(), fields)
	if err != nil {
		h.fail(c, err)
		return
	}
	OK(c, gin.H{"user": toJSON(u)})
}

// Update handles PUT /users/:userId. An enable query parameter turns the request into a status transition.
func (h *Handler) Update(c *gin.Context) {
	id, err := validation.Identifier(c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	enable, err := validation.SingleValue(c.Request.URL.Query(), "enable")
	if err != nil {
		h.fail(c, err)
		return
	}
	raw, err := decodeBody(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	change, err := validation.UpdatePayload(raw, enable)
	if err != nil {
		h.fail(c, err)
		return
	}
	u, err := h.svc.UpdateOne(c.Request.Context(), id, change)
	if err != nil {
		h.fail(c, err)
		return
	}
	OK(c, gin.H{"user": toJSON(u)})
}

// Delete handles DELETE /users/:userId.
func (h *Handler) Delete(c *gin.Context) {
	id, err := validation.Identifier(c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	u, err := h.svc.DeleteOne(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	OK(c, gin.H{"user": toJSON(u)})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code, message, field := statusOf(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	Fail(c, status, code, message, field)
}

// decodeBody reads the request body as a JSON object. An empty body decodes to an empty map.
func decodeBody(c *gin.Context) (map[string]any, error) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewValidationError("", "request body is too large")
	}
	raw := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return raw, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, domain.NewValidationError("", "request body must be a JSON object")
	}
	if dec.More() {
		return nil, domain.NewValidationError("", "request body must contain a single JSON object")
	}
	return raw, nil
}
