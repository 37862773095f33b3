package models

// Class represents a turma: a cohort of students with a capacity and level.
type Class struct {
	ID       int64  `json:"id"`
	Name     string `json:"nome"`
	Capacity int    `json:"capacidade"`
	Level    string `json:"nivel,omitempty"`
}

// GetID implements Identified.
func (c Class) GetID() int64 { return c.ID }

// ClassPayload is the request body of POST /turmas.
type ClassPayload struct {
	Name     string `json:"nome"`
	Capacity int    `json:"capacidade"`
	Level    string `json:"nivel,omitempty"`
}

// Enrollment links a student to a class (POST /matriculas).
type Enrollment struct {
	StudentID int64 `json:"aluno_id" binding:"required"`
	ClassID   int64 `json:"turma_id" binding:"required"`
}

// Identified is implemented by records carrying a numeric identifier.
type Identified interface {
	GetID() int64
}

// NextID returns one more than the highest identifier, or 1 for an empty collection.
func NextID[T Identified](items []T) int64 {
	var max int64
	for _, item := range items {
		if id := item.GetID(); id > max {
			max = id
		}
	}
	return max + 1
}
