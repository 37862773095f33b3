package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster/internal/dto"
	"github.com/noah-isme/sma-roster/internal/models"
	"github.com/noah-isme/sma-roster/internal/service"
	appErrors "github.com/noah-isme/sma-roster/pkg/errors"
)

type exportRendererStub struct {
	file *service.ExportFile
	err  error
}

func (s *exportRendererStub) RenderCurrent(format models.ExportFormat) (*service.ExportFile, error) {
	return s.file, s.err
}

type exportJobsStub struct {
	createReq   dto.ExportRequest
	createErr   error
	job         *models.ExportJob
	statusErr   error
	download    *service.ExportDownload
	downloadErr error
}

func (s *exportJobsStub) CreateJob(ctx context.Context, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	s.createReq = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued}, nil
}

func (s *exportJobsStub) GetStatus(ctx context.Context, id string) (*models.ExportJob, error) {
	return s.job, s.statusErr
}

func (s *exportJobsStub) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return s.download, s.downloadErr
}

func TestExportHandlerDownloadCurrentView(t *testing.T) {
	gin.SetMode(gin.TestMode)
	renderer := &exportRendererStub{file: &service.ExportFile{
		Filename:    "alunos.csv",
		ContentType: "text/csv; charset=utf-8",
		Data:        []byte("Nome;Data Nascimento;Idade;Email;Status;Turma\n"),
	}}
	handler := NewExportHandler(renderer, &exportJobsStub{})

	c, w := newGinContext(http.MethodGet, "/export/alunos.csv", nil)
	handler.Download(models.ExportFormatCSV)(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="alunos.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Nome;Data Nascimento")
}

func TestExportHandlerDownloadRenderFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportRendererStub{err: appErrors.Clone(appErrors.ErrValidation, "formato não suportado")}, &exportJobsStub{})

	c, w := newGinContext(http.MethodGet, "/export/alunos.xls", nil)
	handler.Download(models.ExportFormat("xls"))(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerCreateJob(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jobs := &exportJobsStub{}
	handler := NewExportHandler(&exportRendererStub{}, jobs)

	c, w := newGinContext(http.MethodPost, "/exports", []byte(`{"format":"pdf","nome":"ana","sort":"idade"}`))
	handler.CreateJob(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.ExportFormatPDF, jobs.createReq.Format)
	assert.Equal(t, "ana", jobs.createReq.Name)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var resp dto.ExportJobResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "job-1", resp.ID)
}

func TestExportHandlerJobStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	url := "/api/v1/export/token"
	jobs := &exportJobsStub{job: &models.ExportJob{ID: "job-1", Status: models.ExportStatusFinished, ResultURL: &url}}
	handler := NewExportHandler(&exportRendererStub{}, jobs)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	handler.JobStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"FINISHED"`)

	jobs.statusErr = appErrors.Clone(appErrors.ErrNotFound, "exportação não encontrada")
	c, w = newGinContext(http.MethodGet, "/exports/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	handler.JobStatus(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandlerDownloadSigned(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "alunos.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"nome":"Ana"}]`), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	jobs := &exportJobsStub{download: &service.ExportDownload{
		File:        file,
		Filename:    "alunos.json",
		ContentType: "application/json",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	handler := NewExportHandler(&exportRendererStub{}, jobs)

	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.DownloadSigned(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `[{"nome":"Ana"}]`, w.Body.String())
	assert.Equal(t, `attachment; filename="alunos.json"`, w.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, w.Header().Get("Expires"))
}

func TestExportHandlerDownloadSignedForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jobs := &exportJobsStub{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "link expirado")}
	handler := NewExportHandler(&exportRendererStub{}, jobs)

	c, w := newGinContext(http.MethodGet, "/export/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.DownloadSigned(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
