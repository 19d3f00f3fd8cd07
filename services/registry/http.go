package registry

import (
	"errors"
	"net/http"

	"github.com/DoguKody/depradar/lib/pypi"

	"github.com/gin-gonic/gin"
)

// Handler defines the HTTP surface of the registry service.
type Handler interface {
	GetPackage(ctx *gin.Context)
}

type handler struct {
	service Service
}

func NewHandler(service Service) Handler {
	return &handler{service: service}
}

// RegisterRoutes mounts the registry API on the given route group.
func RegisterRoutes(group *gin.RouterGroup, service Service) {
	h := NewHandler(service)
	group.GET("/packages/:name", h.GetPackage)
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func (h *handler) GetPackage(ctx *gin.Context) {
	view, err := h.service.GetPackage(ctx, ctx.Param("name"))
	if errors.Is(err, ErrInvalidName) {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}
	if errors.Is(err, pypi.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusBadGateway, ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, view)
}
