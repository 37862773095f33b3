package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-roster/internal/models"
)

func TestDiffStudents(t *testing.T) {
	remote := sampleStudents()
	local := sampleStudents()[:2]
	local[1].Status = models.StudentStatusActive
	local = append(local, models.Student{ID: 9, Name: "Carla", Status: models.StudentStatusActive})

	report := DiffStudents(remote, local)
	assert.False(t, report.InSync())
	assert.Equal(t, 1, report.Matching)
	assert.Equal(t, []models.Student{remote[2]}, report.OnlyRemote)
	assert.Equal(t, int64(9), report.OnlyLocal[0].ID)
	if assert.Len(t, report.Changed, 1) {
		assert.Equal(t, int64(2), report.Changed[0].ID)
		assert.Equal(t, models.StudentStatusInactive, report.Changed[0].Remote.Status)
	}

	assert.True(t, DiffStudents(sampleStudents(), sampleStudents()).InSync())
}
