package sites

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/tenantedge/internal/hostroute"
)

// Handler serves tenant pages under the internal namespace.
type Handler struct {
	pages  *Regenerator
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(pages *Regenerator, logger *zap.Logger) *Handler {
	return &Handler{pages: pages, logger: logger}
}

// Register mounts the tenant page route on the engine.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET(hostroute.SitesPrefix+"/:site/*path", h.serve)
	r.HEAD(hostroute.SitesPrefix+"/:site/*path", h.serve)
}

func (h *Handler) serve(c *gin.Context) {
	site := c.Param("site")

	var (
		p   *Page
		err error
	)
	if path := c.Param("path"); path == "/" || path == "" {
		p, err = h.pages.Page(c.Request.Context(), site)
	} else {
		p, err = h.pages.builder.NotFound(site)
	}
	if err != nil {
		h.logger.Error("render tenant page", zap.String("site", site), zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	if p.Status == http.StatusOK {
		secs := int(h.pages.Revalidate().Seconds())
		c.Header("Cache-Control", fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate", secs))
	} else {
		c.Header("Cache-Control", "no-store")
		c.Header("X-Robots-Tag", "noindex")
	}
	c.Data(p.Status, "text/html; charset=utf-8", p.Body)
}
