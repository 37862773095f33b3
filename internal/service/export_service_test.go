package service

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster/internal/dto"
	"github.com/noah-isme/sma-roster/internal/models"
	"github.com/noah-isme/sma-roster/internal/repository"
	appErrors "github.com/noah-isme/sma-roster/pkg/errors"
	"github.com/noah-isme/sma-roster/pkg/jobs"
	"github.com/noah-isme/sma-roster/pkg/storage"
)

type rosterSourceStub struct {
	students []models.Student
	classes  []models.Class
	queried  []models.StudentFilter
}

func (r *rosterSourceStub) SortedView(field models.SortField) iter.Seq[models.Student] {
	return func(yield func(models.Student) bool) {
		items := slices.Clone(r.students)
		SortStudents(items, field)
		for _, s := range items {
			if !yield(s) {
				return
			}
		}
	}
}

func (r *rosterSourceStub) Query(_ context.Context, filter models.StudentFilter) ([]models.Student, models.DataSource, error) {
	r.queried = append(r.queried, filter)
	return filter.Apply(r.students), models.SourceLocal, nil
}

func (r *rosterSourceStub) Classes() []models.Class { return r.classes }

func (r *rosterSourceStub) Sort() models.SortField { return models.SortByName }

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage, *rosterSourceStub) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	roster := &rosterSourceStub{students: sampleStudents(), classes: sampleClasses()}
	svc := NewExportService(roster, store, storage.NewSignedURLSigner("secret", time.Hour), NewMetricsService(), ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc, store, roster
}

func TestExportServiceRenderCSV(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	file, err := svc.RenderCurrent(models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "alunos.csv", file.Filename)
	assert.Contains(t, file.ContentType, "text/csv")

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Nome;Data Nascimento;Idade;Email;Status;Turma", lines[0])
	assert.Equal(t, "Ana;10/01/2010;14;;ativo;1A - Manhã", lines[1])
	assert.Equal(t, "Ana;03/03/2011;13;;ativo;2B - Tarde", lines[2])
	assert.Equal(t, "Beto;02/05/2009;15;;inativo;1A - Manhã", lines[3])
}

func TestExportServiceRenderJSON(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	file, err := svc.RenderCurrent(models.ExportFormatJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(file.Data), "[\n  {"))

	var decoded []models.Student
	require.NoError(t, json.Unmarshal(file.Data, &decoded))
	assert.Len(t, decoded, 3)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	_, err := svc.RenderCurrent(models.ExportFormat("xlsx"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportServiceGenerateStoresSignedFile(t *testing.T) {
	svc, store, roster := newExportServiceForTest(t)
	job := &models.ExportJob{ID: "job-1", Format: models.ExportFormatPDF, Filter: models.StudentFilter{Status: models.StudentStatusActive}}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.Equal(t, []models.StudentFilter{{Status: models.StudentStatusActive}}, roster.queried)

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	id, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.Equal(t, result.RelativePath, relPath)
}

type queueStub struct {
	jobs []jobs.Job
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func TestExportJobLifecycle(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	repo := repository.NewExportJobRepository()
	queue := &queueStub{}
	jobSvc := NewExportJobService(repo, queue, svc, ExportJobConfig{ResultTTL: time.Hour}, nil)
	worker := NewExportWorker(repo, svc, 0, nil)
	ctx := context.Background()

	resp, err := jobSvc.CreateJob(ctx, dto.ExportRequest{Format: models.ExportFormatCSV, Name: "ana"})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	require.Len(t, queue.jobs, 1)

	require.NoError(t, worker.Handle(ctx, queue.jobs[0]))
	job, err := jobSvc.GetStatus(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	require.NotNil(t, job.ResultURL)

	download, err := jobSvc.ResolveDownload(ctx, extractToken(*job.ResultURL))
	require.NoError(t, err)
	defer download.File.Close()
	data, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Ana;10/01/2010")
	assert.NotContains(t, string(data), "Beto")

	_, err = jobSvc.ResolveDownload(ctx, "bogus.token.value.sig")
	assert.Error(t, err)
}

func TestExportJobRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	jobSvc := NewExportJobService(repository.NewExportJobRepository(), &queueStub{}, svc, ExportJobConfig{}, nil)
	_, err := jobSvc.CreateJob(context.Background(), dto.ExportRequest{Format: "xlsx"})
	assert.Error(t, err)
}
