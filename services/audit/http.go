package audit

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/DoguKody/depradar/lib/lint"
	"github.com/DoguKody/depradar/lib/requirements"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Handler defines the HTTP surface of the audit service.
type Handler interface {
	PutSet(ctx *gin.Context)
	ListSets(ctx *gin.Context)
	GetSet(ctx *gin.Context)
	DeleteSet(ctx *gin.Context)
	RunAudit(ctx *gin.Context)
	ListReports(ctx *gin.Context)
	GetLatestReport(ctx *gin.Context)
	GetReport(ctx *gin.Context)
	Lint(ctx *gin.Context)
}

type handler struct {
	service Service
}

func NewHandler(service Service) Handler {
	return &handler{service: service}
}

// RegisterRoutes mounts the audit API on the given route group.
func RegisterRoutes(group *gin.RouterGroup, service Service) {
	h := NewHandler(service)
	group.POST("/sets", h.PutSet)
	group.GET("/sets", h.ListSets)
	group.GET("/sets/:name", h.GetSet)
	group.DELETE("/sets/:name", h.DeleteSet)
	group.POST("/sets/:name/audits", h.RunAudit)
	group.GET("/sets/:name/reports", h.ListReports)
	group.GET("/sets/:name/reports/latest", h.GetLatestReport)
	group.GET("/reports/:id", h.GetReport)
	group.POST("/lint", h.Lint)
}

type ErrorResponse struct {
	Message string `json:"message"`
}

type ManifestFileDto struct {
	Name    string `json:"name" validate:"required,min=1,max=255"`
	Content string `json:"content"`
}

type PutSetRequest struct {
	Name  string            `json:"name" validate:"required,min=1,max=128"`
	Files []ManifestFileDto `json:"files" validate:"required,min=1,dive"`
}

// Validate for validating PutSetRequest payloads
func (r PutSetRequest) Validate() error {
	return validateStruct(r)
}

type LintRequest struct {
	Files []ManifestFileDto `json:"files" validate:"required,min=1,dive"`
}

// Validate for validating LintRequest payloads
func (r LintRequest) Validate() error {
	return validateStruct(r)
}

type LintResponse struct {
	Findings []lint.Finding `json:"findings"`
}

func validateStruct(value any) error {
	validate := validator.New()
	err := validate.Struct(value)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			var messages []string
			for _, fieldErr := range validationErrors {
				messages = append(messages, fmt.Sprintf("Field: %s, Tag: %s", fieldErr.Field(), fieldErr.Tag()))
			}
			return fmt.Errorf("validation failed: %v", messages)
		}
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func (h *handler) PutSet(ctx *gin.Context) {
	var request PutSetRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Message: fmt.Sprintf("invalid manifest set: %v", err)})
		return
	}
	if err := request.Validate(); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	files := make([]FileInput, 0, len(request.Files))
	for _, file := range request.Files {
		files = append(files, FileInput{Name: file.Name, Content: file.Content})
	}

	report, err := h.service.PutManifestSet(ctx, request.Name, files)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, report)
}

func (h *handler) ListSets(ctx *gin.Context) {
	sets, err := h.service.ListSets(ctx)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, sets)
}

func (h *handler) GetSet(ctx *gin.Context) {
	set, err := h.service.GetSet(ctx, ctx.Param("name"))
	if errors.Is(err, ErrSetNotFound) {
		ctx.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, set)
}

func (h *handler) DeleteSet(ctx *gin.Context) {
	err := h.service.DeleteSet(ctx, ctx.Param("name"))
	if errors.Is(err, ErrSetNotFound) {
		ctx.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *handler) RunAudit(ctx *gin.Context) {
	report, err := h.service.RunAudit(ctx, ctx.Param("name"))
	if errors.Is(err, ErrSetNotFound) {
		ctx.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	}
	if err != nil {
		// audits die on upstream registry failures
		ctx.JSON(http.StatusBadGateway, ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, report)
}

func (h *handler) ListReports(ctx *gin.Context) {
	reports, err := h.service.ListReports(ctx, ctx.Param("name"))
	if errors.Is(err, ErrSetNotFound) {
		ctx.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, reports)
}

func (h *handler) GetLatestReport(ctx *gin.Context) {
	report, err := h.service.GetLatestReport(ctx, ctx.Param("name"))
	if errors.Is(err, ErrSetNotFound) || errors.Is(err, ErrReportNotFound) {
		ctx.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, report)
}

func (h *handler) GetReport(ctx *gin.Context) {
	report, err := h.service.GetReport(ctx, ctx.Param("id"))
	if errors.Is(err, ErrReportNotFound) {
		ctx.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// Lint checks manifests without storing anything, for editor and CI
// integrations that do not want a tracked set.
func (h *handler) Lint(ctx *gin.Context) {
	var request LintRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Message: fmt.Sprintf("invalid lint request: %v", err)})
		return
	}
	if err := request.Validate(); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	manifests := make([]requirements.File, 0, len(request.Files))
	for _, file := range request.Files {
		manifest, err := requirements.Parse(file.Name, strings.NewReader(file.Content))
		if err != nil {
			ctx.JSON(http.StatusBadRequest, ErrorResponse{Message: fmt.Sprintf("%s: %v", file.Name, err)})
			return
		}
		manifests = append(manifests, manifest)
	}

	findings := lint.RunWithPolicy(h.service.policy, manifests...)
	if findings == nil {
		findings = []lint.Finding{}
	}
	ctx.JSON(http.StatusOK, LintResponse{Findings: findings})
}
