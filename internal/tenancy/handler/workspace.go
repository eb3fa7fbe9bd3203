package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/tenantedge/internal/domain"
	"github.com/jmerrifield20/tenantedge/internal/identity"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/service"
)

// WorkspaceHandler handles workspace settings requests.
type WorkspaceHandler struct {
	svc    *service.WorkspaceService
	tokens *identity.TokenIssuer
	pages  pageInvalidator
	apex   string
	logger *zap.Logger
}

// NewWorkspaceHandler creates a WorkspaceHandler. pages may be nil.
func NewWorkspaceHandler(svc *service.WorkspaceService, tokens *identity.TokenIssuer, pages pageInvalidator, apex string, logger *zap.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc, tokens: tokens, pages: pages, apex: apex, logger: logger}
}

// Register wires the workspace routes onto the API group.
func (h *WorkspaceHandler) Register(rg *gin.RouterGroup) {
	auth := identity.RequireSession(h.tokens)

	rg.POST("/workspace", auth, h.Create)
	ws := rg.Group("/workspace/:slug")
	{
		ws.GET("", identity.OptionalSession(h.tokens), h.Get)
		ws.DELETE("", auth, h.Delete)
		ws.PUT("/name", auth, h.Rename)
		ws.PUT("/slug", auth, h.ChangeSlug)
	}
}

// workspaceView is what the settings pages need to render.
type workspaceView struct {
	ID       string         `json:"id"`
	Slug     string         `json:"slug"`
	Name     string         `json:"name"`
	Hostname string         `json:"hostname"`
	IsOwner  bool           `json:"isOwner"`
	Domains  []model.Domain `json:"domains"`
}

func (h *WorkspaceHandler) view(w *model.Workspace, actor model.Identity) workspaceView {
	v := workspaceView{
		ID:       w.ID.String(),
		Slug:     w.Slug,
		Name:     w.Name,
		Hostname: w.Hostname(h.apex),
		IsOwner:  w.IsOwner(actor),
		Domains:  []model.Domain{},
	}
	// Non-owners only see domains that already serve the workspace.
	ds := w.Domains
	if !v.IsOwner {
		ds = w.VerifiedDomains()
	}
	for _, d := range ds {
		if !v.IsOwner {
			d.VerificationToken = ""
		}
		v.Domains = append(v.Domains, d)
	}
	return v
}

// Create handles POST /workspace.
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "request body must be JSON with name and slug fields")
		return
	}
	actor := identity.IdentityFromCtx(c)
	w, err := h.svc.Create(c.Request.Context(), actor, req.Name, req.Slug)
	if err != nil {
		writeError(c, h.logger, err, domain.FieldSlug)
		return
	}
	h.invalidate(c, w.Slug)
	c.JSON(http.StatusCreated, gin.H{"data": h.view(w, actor)})
}

// Get handles GET /workspace/:slug.
func (h *WorkspaceHandler) Get(c *gin.Context) {
	w, err := h.svc.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, h.logger, err, domain.FieldSlug)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.view(w, identity.IdentityFromCtx(c))})
}

// Rename handles PUT /workspace/:slug/name.
func (h *WorkspaceHandler) Rename(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, domain.FieldName, "request body must be JSON with a name field")
		return
	}
	w, err := h.svc.Rename(c.Request.Context(), identity.IdentityFromCtx(c), c.Param("slug"), req.Name)
	if err != nil {
		writeError(c, h.logger, err, domain.FieldName)
		return
	}
	h.invalidate(c, w.Slug)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"name": w.Name}})
}

// ChangeSlug handles PUT /workspace/:slug/slug.
func (h *WorkspaceHandler) ChangeSlug(c *gin.Context) {
	var req struct {
		Slug string `json:"slug"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, domain.FieldSlug, "request body must be JSON with a slug field")
		return
	}
	old := c.Param("slug")
	w, err := h.svc.ChangeSlug(c.Request.Context(), identity.IdentityFromCtx(c), old, req.Slug)
	if err != nil {
		writeError(c, h.logger, err, domain.FieldSlug)
		return
	}
	h.invalidate(c, old, w.Slug)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"slug": w.Slug}})
}

// Delete handles DELETE /workspace/:slug.
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	slug := c.Param("slug")
	w, err := h.svc.Delete(c.Request.Context(), identity.IdentityFromCtx(c), slug)
	if err != nil {
		writeError(c, h.logger, err, domain.FieldSlug)
		return
	}
	keys := []string{slug, w.Slug}
	for _, d := range w.Domains {
		keys = append(keys, d.Name)
	}
	h.invalidate(c, keys...)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"slug": slug}})
}

func (h *WorkspaceHandler) invalidate(c *gin.Context, keys ...string) {
	if h.pages != nil {
		h.pages.Invalidate(c.Request.Context(), keys...)
	}
}
