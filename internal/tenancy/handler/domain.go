// Package handler exposes workspace settings and custom domain management
// over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/tenantedge/internal/domain"
	"github.com/jmerrifield20/tenantedge/internal/identity"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/service"
)

// pageInvalidator drops cached tenant pages after an edit.
// *sites.Regenerator satisfies it.
type pageInvalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

// DomainHandler handles custom domain requests.
type DomainHandler struct {
	svc    *service.DomainService
	tokens *identity.TokenIssuer
	pages  pageInvalidator
	logger *zap.Logger
}

// NewDomainHandler creates a DomainHandler. pages may be nil.
func NewDomainHandler(svc *service.DomainService, tokens *identity.TokenIssuer, pages pageInvalidator, logger *zap.Logger) *DomainHandler {
	return &DomainHandler{svc: svc, tokens: tokens, pages: pages, logger: logger}
}

// Register wires the domain routes onto the API group.
func (h *DomainHandler) Register(rg *gin.RouterGroup) {
	auth := identity.RequireSession(h.tokens)

	ws := rg.Group("/workspace/:slug/domain", auth)
	{
		ws.GET("", h.List)
		ws.POST("", h.Create)
		ws.PUT("", h.Verify)
		ws.DELETE("", h.Remove)
	}
	rg.GET("/domains/check", auth, h.Check)
}

type domainRequest struct {
	DomainName string `json:"domainName"`
}

// domainView is a domain plus the DNS records that verify it.
type domainView struct {
	model.Domain
	DNS model.DNSInstructions `json:"dns"`
}

type verifyView struct {
	Domain   domainView `json:"domain"`
	Verified bool       `json:"verified"`
	Reason   string     `json:"reason,omitempty"`
}

func (h *DomainHandler) bindName(c *gin.Context) (string, bool) {
	var req domainRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "body", "request body must be JSON with a domainName field")
			return "", false
		}
	}
	if req.DomainName == "" {
		req.DomainName = c.Query("domainName")
	}
	if strings.TrimSpace(req.DomainName) == "" {
		badRequest(c, domain.FieldDomainName, "domain name is required")
		return "", false
	}
	return req.DomainName, true
}

func (h *DomainHandler) view(ctx context.Context, d *model.Domain) (domainView, error) {
	w, err := h.svc.Workspace(ctx, d)
	if err != nil {
		return domainView{}, err
	}
	return domainView{Domain: *d, DNS: h.svc.Instructions(w, d)}, nil
}

// List handles GET /workspace/:slug/domain.
func (h *DomainHandler) List(c *gin.Context) {
	ds, err := h.svc.List(c.Request.Context(), identity.IdentityFromCtx(c), c.Param("slug"))
	if err != nil {
		writeError(c, h.logger, err, domain.FieldDomainName)
		return
	}
	out := make([]domainView, 0, len(ds))
	for i := range ds {
		v, err := h.view(c.Request.Context(), &ds[i])
		if err != nil {
			writeError(c, h.logger, err, domain.FieldDomainName)
			return
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// Create handles POST /workspace/:slug/domain.
func (h *DomainHandler) Create(c *gin.Context) {
	name, ok := h.bindName(c)
	if !ok {
		return
	}
	d, err := h.svc.Create(c.Request.Context(), identity.IdentityFromCtx(c), c.Param("slug"), name)
	if err != nil {
		writeError(c, h.logger, err, domain.FieldDomainName)
		return
	}
	v, err := h.view(c.Request.Context(), d)
	if err != nil {
		writeError(c, h.logger, err, domain.FieldDomainName)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": v})
}

// Verify handles PUT /workspace/:slug/domain. A failed DNS check is a
// normal 200 response with verified=false.
func (h *DomainHandler) Verify(c *gin.Context) {
	name, ok := h.bindName(c)
	if !ok {
		return
	}
	res, err := h.svc.Verify(c.Request.Context(), identity.IdentityFromCtx(c), c.Param("slug"), name)
	if err != nil {
		writeError(c, h.logger, err, domain.FieldDomainName)
		return
	}
	h.respondVerify(c, res)
}

// Check handles GET /domains/check?domain=<name>.
func (h *DomainHandler) Check(c *gin.Context) {
	name := c.Query("domain")
	if strings.TrimSpace(name) == "" {
		badRequest(c, "domain", "domain query parameter is required")
		return
	}
	res, err := h.svc.Check(c.Request.Context(), identity.IdentityFromCtx(c), name)
	if err != nil {
		writeError(c, h.logger, err, domain.FieldDomainName)
		return
	}
	h.respondVerify(c, res)
}

func (h *DomainHandler) respondVerify(c *gin.Context, res *service.VerifyResult) {
	v, err := h.view(c.Request.Context(), res.Domain)
	if err != nil {
		writeError(c, h.logger, err, domain.FieldDomainName)
		return
	}
	h.invalidate(c.Request.Context(), res.Domain)
	c.JSON(http.StatusOK, gin.H{"data": verifyView{Domain: v, Verified: res.Verified, Reason: res.Reason}})
}

// Remove handles DELETE /workspace/:slug/domain.
func (h *DomainHandler) Remove(c *gin.Context) {
	name, ok := h.bindName(c)
	if !ok {
		return
	}
	slug := c.Param("slug")
	if err := h.svc.Remove(c.Request.Context(), identity.IdentityFromCtx(c), slug, name); err != nil {
		writeError(c, h.logger, err, domain.FieldDomainName)
		return
	}
	if h.pages != nil {
		h.pages.Invalidate(c.Request.Context(), slug, domain.Normalize(name))
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"domainName": domain.Normalize(name)}})
}

func (h *DomainHandler) invalidate(ctx context.Context, d *model.Domain) {
	if h.pages == nil {
		return
	}
	keys := []string{d.Name}
	if w, err := h.svc.Workspace(ctx, d); err == nil {
		keys = append(keys, w.Slug)
	}
	h.pages.Invalidate(ctx, keys...)
}
