package service

import (
	"context"
	"fmt"
	"iter"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster/internal/models"
	appErrors "github.com/noah-isme/sma-roster/pkg/errors"
	"github.com/noah-isme/sma-roster/pkg/export"
	"github.com/noah-isme/sma-roster/pkg/storage"
)

// Roster export columns.
var rosterHeaders = []string{"Nome", "Data Nascimento", "Idade", "Email", "Status", "Turma"}

type rosterSource interface {
	SortedView(field models.SortField) iter.Seq[models.Student]
	Query(ctx context.Context, filter models.StudentFilter) ([]models.Student, models.DataSource, error)
	Classes() []models.Class
	Sort() models.SortField
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type exportRecorder interface {
	RecordExport(format models.ExportFormat, err error)
}

type csvRenderer interface {
	ContentType() string
	Render(data export.Dataset) ([]byte, error)
}

type jsonRenderer interface {
	ContentType() string
	Render(v interface{}) ([]byte, error)
}

type pdfRenderer interface {
	ContentType() string
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportFile is a rendered attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders the roster as CSV, JSON or PDF and persists background exports.
type ExportService struct {
	roster  rosterSource
	storage fileStorage
	signer  *storage.SignedURLSigner
	metrics exportRecorder
	csv     csvRenderer
	json    jsonRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. storage and signer may be nil when only
// immediate downloads are needed.
func NewExportService(roster rosterSource, storage fileStorage, signer *storage.SignedURLSigner, metrics exportRecorder, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	return &ExportService{
		roster:  roster,
		storage: storage,
		signer:  signer,
		metrics: metrics,
		csv:     export.NewCSVExporter(';'),
		json:    export.NewJSONExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// RenderCurrent exports the current roster view in the sticky sort order.
func (s *ExportService) RenderCurrent(format models.ExportFormat) (*ExportFile, error) {
	students := collect(s.roster.SortedView(""))
	return s.render(format, students, s.roster.Classes())
}

// Generate fetches the students for the job, renders them and stores the file behind a
// signed download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	if s.storage == nil || s.signer == nil {
		return nil, fmt.Errorf("export storage not configured")
	}
	students, _, err := s.roster.Query(ctx, job.Filter)
	if err != nil {
		return nil, err
	}
	sortField := job.Sort
	if sortField == "" {
		sortField = s.roster.Sort()
	}
	SortStudents(students, sortField)

	file, err := s.render(job.Format, students, s.roster.Classes())
	if err != nil {
		return nil, err
	}
	relPath, err := s.storage.Save(s.buildFilename(job), file.Data)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	if s.signer == nil {
		return "", "", time.Time{}, fmt.Errorf("signer not configured")
	}
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// ContentType reports the MIME type for a format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	switch format {
	case models.ExportFormatJSON:
		return s.json.ContentType()
	case models.ExportFormatPDF:
		return s.pdf.ContentType()
	default:
		return s.csv.ContentType()
	}
}

func (s *ExportService) render(format models.ExportFormat, students []models.Student, classes []models.Class) (file *ExportFile, err error) {
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordExport(format, err)
		}
	}()

	var payload []byte
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(s.buildDataset(students, classes))
	case models.ExportFormatJSON:
		payload, err = s.json.Render(students)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(s.buildDataset(students, classes), "Lista de Alunos")
	default:
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("formato de exportação não suportado: %s", format))
	}
	if err != nil {
		s.logger.Warn("export render failed", zap.String("format", string(format)), zap.Error(err))
		return nil, err
	}
	return &ExportFile{
		Filename:    "alunos." + string(format),
		ContentType: s.ContentType(format),
		Data:        payload,
	}, nil
}

func (s *ExportService) buildDataset(students []models.Student, classes []models.Class) export.Dataset {
	classNames := make(map[int64]string, len(classes))
	for _, class := range classes {
		classNames[class.ID] = class.Name
	}
	now := s.now()
	rows := make([]map[string]string, 0, len(students))
	for _, student := range students {
		className := ""
		if student.ClassID != nil {
			className = classNames[*student.ClassID]
		}
		age := ""
		if !student.BirthDate.IsZero() {
			age = strconv.Itoa(student.BirthDate.AgeAt(now))
		}
		rows = append(rows, map[string]string{
			"Nome":            student.Name,
			"Data Nascimento": student.BirthDate.BR(),
			"Idade":           age,
			"Email":           student.Email,
			"Status":          string(student.Status),
			"Turma":           className,
		})
	}
	return export.Dataset{Headers: rosterHeaders, Rows: rows}
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("alunos_%s_%s.%s", timestamp, job.ID, job.Format)
}

func collect[T any](seq iter.Seq[T]) []T {
	items := []T{}
	for item := range seq {
		items = append(items, item)
	}
	return items
}
