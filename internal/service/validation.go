package service

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	ptBRLocale "github.com/go-playground/locales/pt_BR"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	ptBRTranslations "github.com/go-playground/validator/v10/translations/pt_BR"

	"github.com/noah-isme/sma-roster/internal/dto"
	"github.com/noah-isme/sma-roster/internal/models"
	appErrors "github.com/noah-isme/sma-roster/pkg/errors"
)

var basicEmailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	isoDateTag    = "iso_date"
	isoDateText   = "{0} deve ser uma data válida no formato AAAA-MM-DD"
	minAgeTag     = "min_age"
	minAgeText    = "{0} indica idade menor que {1} anos"
	basicEmailTag = "basic_email"
	basicEmailTxt = "{0} deve ser um e-mail válido"
)

// StudentValidator checks student forms and reports pt-BR messages per JSON field.
type StudentValidator struct {
	validate   *validator.Validate
	translator ut.Translator
	now        func() time.Time
}

// NewStudentValidator builds a validator. A nil clock uses time.Now.
func NewStudentValidator(now func() time.Time) *StudentValidator {
	if now == nil {
		now = time.Now
	}
	locale := ptBRLocale.New()
	uni := ut.New(locale, locale)
	translator, _ := uni.GetTranslator(locale.Locale())

	v := &StudentValidator{validate: validator.New(), translator: translator, now: now}
	_ = ptBRTranslations.RegisterDefaultTranslations(v.validate, translator)

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.validate.RegisterValidation(isoDateTag, isoDateValidation)
	_ = v.validate.RegisterValidation(minAgeTag, v.minAgeValidation)
	_ = v.validate.RegisterValidation(basicEmailTag, basicEmailValidation)
	registerTranslation(v.validate, translator, isoDateTag, isoDateText)
	registerTranslation(v.validate, translator, minAgeTag, minAgeText)
	registerTranslation(v.validate, translator, basicEmailTag, basicEmailTxt)
	return v
}

// Normalize trims free-text fields and defaults the status.
func (v *StudentValidator) Normalize(req dto.StudentRequest) dto.StudentRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.BirthDate = strings.TrimSpace(req.BirthDate)
	req.Email = strings.TrimSpace(req.Email)
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if req.Status == "" {
		req.Status = string(models.StudentStatusActive)
	}
	req.ClassName = strings.TrimSpace(req.ClassName)
	return req
}

// Validate returns a VALIDATION_ERROR with per-field messages, or nil.
func (v *StudentValidator) Validate(req dto.StudentRequest) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "dados do aluno inválidos")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(v.translator)
	}
	return appErrors.Validation("dados do aluno inválidos", fields)
}

// age returns the student's age in whole years at the validator's clock.
func (v *StudentValidator) age(birth models.Date) int {
	return birth.AgeAt(v.now())
}

func (v *StudentValidator) minAgeValidation(fl validator.FieldLevel) bool {
	minAge, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	birth, err := models.ParseDate(fl.Field().String())
	if err != nil {
		return false
	}
	return v.age(birth) >= minAge
}

func isoDateValidation(fl validator.FieldLevel) bool {
	_, err := time.Parse(models.DateLayout, fl.Field().String())
	return err == nil
}

func basicEmailValidation(fl validator.FieldLevel) bool {
	return basicEmailRegex.MatchString(fl.Field().String())
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), fe.Param())
			return s
		},
	)
}
