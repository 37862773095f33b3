package handler

import (
	"context"
	"iter"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster/internal/dto"
	"github.com/noah-isme/sma-roster/internal/models"
	"github.com/noah-isme/sma-roster/internal/service"
	appErrors "github.com/noah-isme/sma-roster/pkg/errors"
	"github.com/noah-isme/sma-roster/pkg/response"
)

type rosterService interface {
	Refresh(ctx context.Context, filter models.StudentFilter) (models.DataSource, error)
	Search(ctx context.Context, filter models.StudentFilter) (models.DataSource, error)
	LoadClasses(ctx context.Context) (models.DataSource, error)
	SortedView(field models.SortField) iter.Seq[models.Student]
	Save(ctx context.Context, req dto.StudentRequest) (*service.SaveResult, error)
	Delete(ctx context.Context, id int64) (models.DataSource, error)
	Enroll(ctx context.Context, studentID, classID int64) (*models.Student, error)
	SetSort(ctx context.Context, raw string) (models.SortField, error)
	Classes() []models.Class
	Indicators() models.Indicators
	Sort() models.SortField
	Source() models.DataSource
}

// RosterHandler exposes the roster view-model commands.
type RosterHandler struct {
	roster rosterService
}

// NewRosterHandler constructs RosterHandler.
func NewRosterHandler(roster rosterService) *RosterHandler {
	return &RosterHandler{roster: roster}
}

// ListClasses godoc
// @Summary List classes (turmas)
// @Tags Turmas
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /turmas [get]
func (h *RosterHandler) ListClasses(c *gin.Context) {
	source, err := h.roster.LoadClasses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.roster.Classes(), sourceMeta(c, source))
}

// ListStudents godoc
// @Summary List students (alunos)
// @Tags Alunos
// @Produce json
// @Param nome query string false "Name contains (case-insensitive)"
// @Param turma_id query int false "Class ID"
// @Param status query string false "ativo or inativo"
// @Param sort query string false "nome or idade; defaults to the stored preference"
// @Success 200 {object} response.Envelope
// @Router /alunos [get]
func (h *RosterHandler) ListStudents(c *gin.Context) {
	h.list(c, h.roster.Refresh)
}

// SearchStudents godoc
// @Summary Debounced student search
// @Description Requests arriving within the quiet period coalesce into one refresh using the latest filter.
// @Tags Alunos
// @Produce json
// @Param nome query string false "Name contains (case-insensitive)"
// @Param turma_id query int false "Class ID"
// @Param status query string false "ativo or inativo"
// @Success 200 {object} response.Envelope
// @Router /alunos/search [get]
func (h *RosterHandler) SearchStudents(c *gin.Context) {
	h.list(c, h.roster.Search)
}

func (h *RosterHandler) list(c *gin.Context, fetch func(context.Context, models.StudentFilter) (models.DataSource, error)) {
	filter, err := filterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var sortField models.SortField
	if raw := strings.TrimSpace(c.Query("sort")); raw != "" {
		sortField, err = models.ParseSortField(raw)
		if err != nil {
			response.Error(c, appErrors.Validation("ordenação inválida", map[string]string{"sort": "use nome ou idade"}))
			return
		}
	}
	source, err := fetch(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	students := slices.Collect(h.roster.SortedView(sortField))
	if students == nil {
		students = []models.Student{}
	}
	if sortField == "" {
		sortField = h.roster.Sort()
	}
	response.JSON(c, http.StatusOK, dto.StudentListResponse{
		Students:   students,
		Indicators: h.roster.Indicators(),
		Sort:       sortField,
	}, sourceMeta(c, source))
}

// CreateStudent godoc
// @Summary Create student
// @Description Unknown free-text class names (field turma) are created on the fly.
// @Tags Alunos
// @Accept json
// @Produce json
// @Param payload body dto.StudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /alunos [post]
func (h *RosterHandler) CreateStudent(c *gin.Context) {
	var req dto.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	req.ID = 0
	h.save(c, req, http.StatusCreated)
}

// UpdateStudent godoc
// @Summary Update student
// @Tags Alunos
// @Accept json
// @Produce json
// @Param id path int true "Student ID"
// @Param payload body dto.StudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /alunos/{id} [put]
func (h *RosterHandler) UpdateStudent(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	req.ID = id
	h.save(c, req, http.StatusOK)
}

func (h *RosterHandler) save(c *gin.Context, req dto.StudentRequest, status int) {
	result, err := h.roster.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, status, dto.SaveStudentResponse{
		Student:      result.Student,
		ClassCreated: result.ClassCreated,
	}, sourceMeta(c, result.Source))
}

// DeleteStudent godoc
// @Summary Delete student
// @Tags Alunos
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /alunos/{id} [delete]
func (h *RosterHandler) DeleteStudent(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	source, err := h.roster.Delete(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": id, "deleted": true}, sourceMeta(c, source))
}

// Enroll godoc
// @Summary Enroll a student in a class
// @Description Backend only; fails with 503 when the backend is unreachable.
// @Tags Matriculas
// @Accept json
// @Produce json
// @Param payload body dto.EnrollmentRequest true "Enrollment"
// @Success 201 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /matriculas [post]
func (h *RosterHandler) Enroll(c *gin.Context) {
	var req dto.EnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	student, err := h.roster.Enroll(c.Request.Context(), req.StudentID, req.ClassID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"aluno_id": req.StudentID, "turma_id": req.ClassID, "aluno": student}, sourceMeta(c, models.SourceRemote))
}

// Indicators godoc
// @Summary Roster indicators for the current view
// @Tags Alunos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /indicadores [get]
func (h *RosterHandler) Indicators(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.roster.Indicators(), sourceMeta(c, h.roster.Source()))
}

// GetSort godoc
// @Summary Current sort preference
// @Tags Preferencias
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /preferencias/sort [get]
func (h *RosterHandler) GetSort(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"sort": h.roster.Sort()})
}

// SetSort godoc
// @Summary Update sort preference
// @Tags Preferencias
// @Accept json
// @Produce json
// @Param payload body dto.SortPreferenceRequest true "Sort field"
// @Success 200 {object} response.Envelope
// @Router /preferencias/sort [put]
func (h *RosterHandler) SetSort(c *gin.Context) {
	var req dto.SortPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	field, err := h.roster.SetSort(c.Request.Context(), req.Sort)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"sort": field})
}
