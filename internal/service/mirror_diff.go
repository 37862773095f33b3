package service

import (
	"cmp"
	"slices"

	"github.com/noah-isme/sma-roster/internal/models"
)

// StudentDiff describes a record that differs between the backend and the mirror.
type StudentDiff struct {
	ID     int64           `json:"id"`
	Remote *models.Student `json:"remote,omitempty"`
	Local  *models.Student `json:"local,omitempty"`
}

// MirrorDiffReport compares the backend roster with the local mirror.
type MirrorDiffReport struct {
	OnlyRemote []models.Student `json:"only_remote"`
	OnlyLocal  []models.Student `json:"only_local"`
	Changed    []StudentDiff    `json:"changed"`
	Matching   int              `json:"matching"`
}

// InSync reports whether both sides hold the same records.
func (r MirrorDiffReport) InSync() bool {
	return len(r.OnlyRemote) == 0 && len(r.OnlyLocal) == 0 && len(r.Changed) == 0
}

// DiffStudents matches records by id. Output slices are ordered by id.
func DiffStudents(remote, local []models.Student) MirrorDiffReport {
	report := MirrorDiffReport{
		OnlyRemote: []models.Student{},
		OnlyLocal:  []models.Student{},
		Changed:    []StudentDiff{},
	}
	localByID := make(map[int64]models.Student, len(local))
	for _, s := range local {
		localByID[s.ID] = s
	}
	seen := make(map[int64]struct{}, len(remote))
	for _, r := range remote {
		seen[r.ID] = struct{}{}
		l, ok := localByID[r.ID]
		switch {
		case !ok:
			report.OnlyRemote = append(report.OnlyRemote, r)
		case studentsEqual(r, l):
			report.Matching++
		default:
			rc, lc := r, l
			report.Changed = append(report.Changed, StudentDiff{ID: r.ID, Remote: &rc, Local: &lc})
		}
	}
	for _, l := range local {
		if _, ok := seen[l.ID]; !ok {
			report.OnlyLocal = append(report.OnlyLocal, l)
		}
	}
	byID := func(a, b models.Student) int { return cmp.Compare(a.ID, b.ID) }
	slices.SortFunc(report.OnlyRemote, byID)
	slices.SortFunc(report.OnlyLocal, byID)
	slices.SortFunc(report.Changed, func(a, b StudentDiff) int { return cmp.Compare(a.ID, b.ID) })
	return report
}

func studentsEqual(a, b models.Student) bool {
	if a.Name != b.Name || a.Email != b.Email || a.Status != b.Status || !a.BirthDate.Equal(b.BirthDate.Time) {
		return false
	}
	switch {
	case a.ClassID == nil && b.ClassID == nil:
		return true
	case a.ClassID == nil || b.ClassID == nil:
		return false
	default:
		return *a.ClassID == *b.ClassID
	}
}
