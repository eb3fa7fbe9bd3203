package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/tenantedge/internal/domain"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/service"
)

// fieldErrors renders the error body {"errors": {"<field>": {"msg": "..."}}}.
func fieldErrors(field, msg string) gin.H {
	return gin.H{"errors": gin.H{field: gin.H{"msg": msg}}}
}

func badRequest(c *gin.Context, field, msg string) {
	c.JSON(http.StatusBadRequest, fieldErrors(field, msg))
}

// writeError maps a service error onto a status code and field error.
// field names the request field a conflict or missing record refers to.
func writeError(c *gin.Context, logger *zap.Logger, err error, field string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, fieldErrors(verr.Field, verr.Msg))
	case errors.Is(err, service.ErrConflict):
		msg := "this value is already in use"
		if field == domain.FieldDomainName {
			msg = "this domain is already claimed by another workspace"
		}
		c.JSON(http.StatusConflict, fieldErrors(field, msg))
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, fieldErrors("workspace", "only the workspace owner can do this"))
	case errors.Is(err, service.ErrWorkspaceNotFound):
		c.JSON(http.StatusNotFound, fieldErrors("workspace", "workspace not found"))
	case errors.Is(err, service.ErrDomainNotFound):
		c.JSON(http.StatusNotFound, fieldErrors(domain.FieldDomainName, "domain not found"))
	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, fieldErrors("server", "internal error"))
	}
}
