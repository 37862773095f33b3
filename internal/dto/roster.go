package dto

import "github.com/noah-isme/sma-roster/internal/models"

// StudentRequest is the create/update form. A zero ID creates a new record. The class may be
// given by id or, as free text, by name; the id wins when both are present.
type StudentRequest struct {
	ID        int64  `json:"id"`
	Name      string `json:"nome" validate:"required,min=3,max=80"`
	BirthDate string `json:"data_nascimento" validate:"required,iso_date,min_age=5"`
	Email     string `json:"email" validate:"omitempty,basic_email"`
	Status    string `json:"status" validate:"omitempty,oneof=ativo inativo"`
	ClassID   *int64 `json:"turma_id" validate:"omitempty,gt=0"`
	ClassName string `json:"turma" validate:"omitempty,max=80"`
}

// EnrollmentRequest is the body of POST /matriculas.
type EnrollmentRequest struct {
	StudentID int64 `json:"aluno_id" binding:"required,gt=0"`
	ClassID   int64 `json:"turma_id" binding:"required,gt=0"`
}

// SortPreferenceRequest is the body of PUT /preferencias/sort.
type SortPreferenceRequest struct {
	Sort string `json:"sort" binding:"required,oneof=nome idade"`
}

// ExportRequest is the body of POST /exports.
type ExportRequest struct {
	Format  models.ExportFormat `json:"format" binding:"required,oneof=csv json pdf"`
	Name    string              `json:"nome"`
	ClassID *int64              `json:"turma_id"`
	Status  string              `json:"status" binding:"omitempty,oneof=ativo inativo"`
	Sort    string              `json:"sort" binding:"omitempty,oneof=nome idade"`
}

// ExportJobResponse is returned when an export is queued.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// StudentListResponse wraps a sorted roster view with its indicators.
type StudentListResponse struct {
	Students   []models.Student  `json:"alunos"`
	Indicators models.Indicators `json:"indicadores"`
	Sort       models.SortField  `json:"sort"`
}

// SaveStudentResponse carries the persisted record.
type SaveStudentResponse struct {
	Student      models.Student `json:"aluno"`
	ClassCreated *models.Class  `json:"turma_criada,omitempty"`
}
