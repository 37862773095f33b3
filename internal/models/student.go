package models

import "strings"

// StudentStatus enumerates the enrollment state of a student record.
type StudentStatus string

const (
	StudentStatusActive   StudentStatus = "ativo"
	StudentStatusInactive StudentStatus = "inativo"
)

// Valid reports whether the status is one of the known values.
func (s StudentStatus) Valid() bool {
	return s == StudentStatusActive || s == StudentStatusInactive
}

// Student represents an aluno record as exchanged with the roster backend.
type Student struct {
	ID        int64         `json:"id"`
	Name      string        `json:"nome"`
	BirthDate Date          `json:"data_nascimento"`
	Email     string        `json:"email,omitempty"`
	Status    StudentStatus `json:"status"`
	ClassID   *int64        `json:"turma_id"`
}

// GetID implements Identified.
func (s Student) GetID() int64 { return s.ID }

// Payload strips the identifier for create/update requests.
func (s Student) Payload() StudentPayload {
	return StudentPayload{
		Name:      s.Name,
		BirthDate: s.BirthDate,
		Email:     s.Email,
		Status:    s.Status,
		ClassID:   s.ClassID,
	}
}

// StudentPayload is a Student without its identifier (request body of POST/PUT /alunos).
type StudentPayload struct {
	Name      string        `json:"nome"`
	BirthDate Date          `json:"data_nascimento"`
	Email     string        `json:"email,omitempty"`
	Status    StudentStatus `json:"status"`
	ClassID   *int64        `json:"turma_id"`
}

// StudentFilter encapsulates the optional, AND-composed list filters.
type StudentFilter struct {
	Name    string        `json:"nome,omitempty"`
	ClassID *int64        `json:"turma_id,omitempty"`
	Status  StudentStatus `json:"status,omitempty"`
}

// IsEmpty reports whether no filter criterion is set.
func (f StudentFilter) IsEmpty() bool {
	return strings.TrimSpace(f.Name) == "" && f.ClassID == nil && f.Status == ""
}

// Matches applies the filter in memory: case-insensitive name substring,
// exact class id and exact status, each optional.
func (f StudentFilter) Matches(s Student) bool {
	if name := strings.TrimSpace(f.Name); name != "" {
		if !strings.Contains(strings.ToLower(s.Name), strings.ToLower(name)) {
			return false
		}
	}
	if f.ClassID != nil {
		if s.ClassID == nil || *s.ClassID != *f.ClassID {
			return false
		}
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

// Apply returns the students matching the filter, preserving order.
func (f StudentFilter) Apply(students []Student) []Student {
	result := make([]Student, 0, len(students))
	for _, s := range students {
		if f.Matches(s) {
			result = append(result, s)
		}
	}
	return result
}
