package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster/internal/dto"
	"github.com/noah-isme/sma-roster/internal/models"
	appErrors "github.com/noah-isme/sma-roster/pkg/errors"
)

func newTestValidator() *StudentValidator {
	return NewStudentValidator(func() time.Time { return fixedNow })
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	return appErr.Fields
}

func TestStudentValidatorAcceptsValidForm(t *testing.T) {
	v := newTestValidator()
	req := v.Normalize(dto.StudentRequest{Name: "  Ana Souza ", BirthDate: "2010-02-03", Email: "ana@escola.br", Status: "ATIVO"})
	assert.Equal(t, "Ana Souza", req.Name)
	assert.Equal(t, "ativo", req.Status)
	assert.NoError(t, v.Validate(req))
}

func TestStudentValidatorDefaultsStatus(t *testing.T) {
	req := newTestValidator().Normalize(dto.StudentRequest{Name: "Ana"})
	assert.Equal(t, string(models.StudentStatusActive), req.Status)
}

func TestStudentValidatorNameLength(t *testing.T) {
	v := newTestValidator()
	fields := validationFields(t, v.Validate(v.Normalize(dto.StudentRequest{Name: " Al ", BirthDate: "2010-01-01"})))
	assert.Contains(t, fields, "nome")

	long := make([]rune, 81)
	for i := range long {
		long[i] = 'á'
	}
	fields = validationFields(t, v.Validate(v.Normalize(dto.StudentRequest{Name: string(long), BirthDate: "2010-01-01"})))
	assert.Contains(t, fields, "nome")

	assert.NoError(t, v.Validate(v.Normalize(dto.StudentRequest{Name: string(long[:80]), BirthDate: "2010-01-01"})))
}

func TestStudentValidatorBirthDate(t *testing.T) {
	v := newTestValidator()

	fields := validationFields(t, v.Validate(v.Normalize(dto.StudentRequest{Name: "Ana"})))
	assert.Contains(t, fields, "data_nascimento")

	fields = validationFields(t, v.Validate(v.Normalize(dto.StudentRequest{Name: "Ana", BirthDate: "15/06/2010"})))
	assert.Contains(t, fields["data_nascimento"], "AAAA-MM-DD")

	fields = validationFields(t, v.Validate(v.Normalize(dto.StudentRequest{Name: "Ana", BirthDate: "2019-06-16"})))
	assert.Contains(t, fields["data_nascimento"], "5")

	assert.NoError(t, v.Validate(v.Normalize(dto.StudentRequest{Name: "Ana", BirthDate: "2019-06-15"})))
}

func TestStudentValidatorEmailAndStatus(t *testing.T) {
	v := newTestValidator()
	fields := validationFields(t, v.Validate(v.Normalize(dto.StudentRequest{
		Name: "Ana", BirthDate: "2010-01-01", Email: "ana@escola", Status: "suspenso",
	})))
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "status")
	assert.NotEmpty(t, fields["email"])
}

func TestStudentValidatorAge(t *testing.T) {
	v := newTestValidator()
	assert.Equal(t, 5, v.age(models.NewDate(2019, time.June, 15)))
	assert.Equal(t, 4, v.age(models.NewDate(2019, time.June, 16)))
	assert.Equal(t, 4, v.age(models.NewDate(2020, time.February, 29)))
}
