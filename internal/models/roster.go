package models

import "fmt"

// DataSource tells the caller whether data came from the backend or the local mirror.
type DataSource string

const (
	SourceRemote DataSource = "remote"
	SourceLocal  DataSource = "local"
)

// SortField is the sticky ordering applied to the roster view.
type SortField string

const (
	SortByName SortField = "nome"
	SortByAge  SortField = "idade"
)

// ParseSortField validates a user-supplied sort key.
func ParseSortField(raw string) (SortField, error) {
	switch SortField(raw) {
	case SortByName, SortByAge:
		return SortField(raw), nil
	default:
		return "", fmt.Errorf("unknown sort field %q", raw)
	}
}

// Indicators summarises the current collection.
type Indicators struct {
	Total    int `json:"total"`
	Active   int `json:"ativos"`
	Inactive int `json:"inativos"`
}

// ComputeIndicators counts records by status; anything not "ativo" is inactive.
func ComputeIndicators(students []Student) Indicators {
	ind := Indicators{Total: len(students)}
	for _, s := range students {
		if s.Status == StudentStatusActive {
			ind.Active++
		}
	}
	ind.Inactive = ind.Total - ind.Active
	return ind
}

// EditState is a step of the per-record edit lifecycle.
type EditState string

const (
	EditIdle             EditState = "idle"
	EditEditing          EditState = "editing"
	EditValidating       EditState = "validating"
	EditValidationFailed EditState = "validation_failed"
	EditPersisting       EditState = "persisting"
)

var editTransitions = map[EditState][]EditState{
	EditIdle:             {EditEditing},
	EditEditing:          {EditValidating, EditIdle},
	EditValidating:       {EditPersisting, EditValidationFailed},
	EditValidationFailed: {EditEditing},
	EditPersisting:       {EditIdle},
}

// CanTransition reports whether the edit lifecycle allows moving from one state to another.
func CanTransition(from, to EditState) bool {
	for _, next := range editTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
