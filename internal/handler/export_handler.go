package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster/internal/dto"
	"github.com/noah-isme/sma-roster/internal/models"
	"github.com/noah-isme/sma-roster/internal/service"
	"github.com/noah-isme/sma-roster/pkg/response"
)

type exportRenderer interface {
	RenderCurrent(format models.ExportFormat) (*service.ExportFile, error)
}

type exportJobs interface {
	CreateJob(ctx context.Context, req dto.ExportRequest) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, id string) (*models.ExportJob, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler serves roster exports.
type ExportHandler struct {
	exports exportRenderer
	jobs    exportJobs
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportRenderer, jobs exportJobs) *ExportHandler {
	return &ExportHandler{exports: exports, jobs: jobs}
}

// Download returns a handler streaming the current roster view in the given format.
//
// @Summary Download the current roster view
// @Tags Export
// @Produce text/csv,application/json,application/pdf
// @Success 200 {file} file
// @Router /export/alunos.csv [get]
// @Router /export/alunos.json [get]
// @Router /export/alunos.pdf [get]
func (h *ExportHandler) Download(format models.ExportFormat) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := h.exports.RenderCurrent(format)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, file.ContentType, file.Data)
	}
}

// CreateJob godoc
// @Summary Queue an asynchronous export
// @Tags Export
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) CreateJob(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	job, err := h.jobs.CreateJob(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job)
}

// JobStatus godoc
// @Summary Export job status
// @Tags Export
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) JobStatus(c *gin.Context) {
	job, err := h.jobs.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// DownloadSigned godoc
// @Summary Download a finished export via signed token
// @Tags Export
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ExportHandler) DownloadSigned(c *gin.Context) {
	download, err := h.jobs.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()
	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), download.ContentType, download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
		"Expires":             download.ExpiresAt.UTC().Format(http.TimeFormat),
	})
}
