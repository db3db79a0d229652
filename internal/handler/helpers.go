package handler

import (
	"net/http"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/apierror"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/middleware"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails; the
// caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := dto.Check(req); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, filter interface{}) bool {
	if err := c.ShouldBindQuery(filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid query: "+err.Error()))
		return false
	}
	if err := dto.Check(filter); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

// respondError maps domain errors to their status and envelope. Anything
// else is attached to the context for ErrorHandler to log and answer 500.
func respondError(c *gin.Context, err error) {
	e, ok := apierror.As(err)
	if !ok {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("internal server error"))
		return
	}
	c.AbortWithStatusJSON(apierror.HTTPStatus(e.Kind), apierror.FromError(e))
}

// actor builds the service actor from the JWT claims and the optional
// X-On-Behalf-Of header.
func actor(c *gin.Context) (service.Actor, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("authentication required"))
		return service.Actor{}, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("invalid or expired token"))
		return service.Actor{}, false
	}
	a := service.Actor{
		ID:                 id,
		Name:               claims.Name,
		Role:               claims.Role,
		CanCreateJobOrders: claims.CanCreateJobOrders,
	}
	if raw := c.GetHeader(middleware.OnBehalfOfHeader); raw != "" {
		delegator, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, apierror.Validation(middleware.OnBehalfOfHeader, "uuid"))
			return service.Actor{}, false
		}
		a.OnBehalfOf = &delegator
	}
	return a, true
}

// pathID parses the named path parameter as a UUID.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apierror.Validation(name, "uuid"))
		return uuid.Nil, false
	}
	return id, true
}
