package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/noah-isme/sma-roster/internal/dto"
	"github.com/noah-isme/sma-roster/internal/models"
	"github.com/noah-isme/sma-roster/internal/repository"
	appErrors "github.com/noah-isme/sma-roster/pkg/errors"
	"github.com/noah-isme/sma-roster/pkg/jobs"
)

type rosterGateway interface {
	Configured() bool
	ListClasses(ctx context.Context) ([]models.Class, error)
	ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	CreateStudent(ctx context.Context, payload models.StudentPayload) (*models.Student, error)
	UpdateStudent(ctx context.Context, id int64, payload models.StudentPayload) (*models.Student, error)
	DeleteStudent(ctx context.Context, id int64) error
	Enroll(ctx context.Context, enrollment models.Enrollment) (*models.Student, error)
	CreateClass(ctx context.Context, payload models.ClassPayload) (*models.Class, error)
	Ping(ctx context.Context) error
}

type rosterMirror interface {
	Load(ctx context.Context) (repository.MirrorSnapshot, error)
	ReplaceStudents(ctx context.Context, students []models.Student) error
	ReplaceClasses(ctx context.Context, classes []models.Class) error
	UpsertStudent(ctx context.Context, student models.Student) (*models.Student, error)
	CreateLocalStudent(ctx context.Context, student models.Student) (*models.Student, error)
	UpdateStudent(ctx context.Context, student models.Student) (*models.Student, error)
	DeleteStudent(ctx context.Context, id int64) error
	ResolveOrCreateClassByName(ctx context.Context, name, defaultLevel string, capacity int) (*models.Class, bool, error)
	DeleteClass(ctx context.Context, id int64) error
	Preference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
}

type fallbackRecorder interface {
	RecordFallback(operation string)
}

// RosterServiceConfig carries view-model defaults.
type RosterServiceConfig struct {
	DefaultSort          models.SortField
	DefaultClassLevel    string
	DefaultClassCapacity int
	SearchDebounce       time.Duration
}

// SaveResult describes a persisted student.
type SaveResult struct {
	Student      models.Student
	ClassCreated *models.Class
	Source       models.DataSource
}

// RosterService owns the current student and class collections for the process and runs
// every command gateway-first with the local mirror as fallback.
type RosterService struct {
	gateway   rosterGateway
	mirror    rosterMirror
	validator *StudentValidator
	metrics   fallbackRecorder
	logger    *zap.Logger
	cfg       RosterServiceConfig
	search    *jobs.Debouncer[models.StudentFilter, models.DataSource]

	mu          sync.RWMutex
	students    []models.Student
	classes     []models.Class
	filter      models.StudentFilter
	sort        models.SortField
	source      models.DataSource
	classSource models.DataSource
	indicators  models.Indicators
	lastEdit    []models.EditState
}

// NewRosterService constructs the view model.
func NewRosterService(gateway rosterGateway, mirror rosterMirror, validator *StudentValidator, metrics fallbackRecorder, cfg RosterServiceConfig, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = NewStudentValidator(nil)
	}
	if _, err := models.ParseSortField(string(cfg.DefaultSort)); err != nil {
		cfg.DefaultSort = models.SortByName
	}
	if cfg.DefaultClassLevel == "" {
		cfg.DefaultClassLevel = "Fundamental"
	}
	if cfg.DefaultClassCapacity <= 0 {
		cfg.DefaultClassCapacity = 30
	}
	s := &RosterService{
		gateway:   gateway,
		mirror:    mirror,
		validator: validator,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		students:  []models.Student{},
		classes:   []models.Class{},
		sort:      cfg.DefaultSort,
	}
	s.search = jobs.NewDebouncer(cfg.SearchDebounce, func(ctx context.Context, filter models.StudentFilter) (models.DataSource, error) {
		return s.Refresh(ctx, filter)
	})
	return s
}

// Init restores the sticky sort preference.
func (s *RosterService) Init(ctx context.Context) error {
	value, ok, err := s.mirror.Preference(ctx, repository.MirrorKeySort)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	field, err := models.ParseSortField(value)
	if err != nil {
		s.logger.Warn("ignoring stored sort preference", zap.String("value", value))
		return nil
	}
	s.mu.Lock()
	s.sort = field
	s.mu.Unlock()
	return nil
}

// Query fetches students matching filter without touching the current collection.
func (s *RosterService) Query(ctx context.Context, filter models.StudentFilter) ([]models.Student, models.DataSource, error) {
	return withFallback(ctx, s, "list_students",
		func(ctx context.Context) ([]models.Student, error) {
			students, err := s.gateway.ListStudents(ctx, filter)
			if err == nil && filter.IsEmpty() {
				s.warm(ctx, "students", func(ctx context.Context) error { return s.mirror.ReplaceStudents(ctx, students) })
			}
			return students, err
		},
		func(ctx context.Context) ([]models.Student, error) {
			snap, err := s.mirror.Load(ctx)
			if err != nil {
				return nil, err
			}
			return filter.Apply(snap.Students), nil
		},
	)
}

// Refresh replaces the current collection with the students matching filter.
func (s *RosterService) Refresh(ctx context.Context, filter models.StudentFilter) (models.DataSource, error) {
	students, source, err := s.Query(ctx, filter)
	if err != nil {
		return source, err
	}
	s.mu.Lock()
	s.students = students
	s.filter = filter
	s.source = source
	s.indicators = models.ComputeIndicators(students)
	s.mu.Unlock()
	return source, nil
}

// Search is a debounced Refresh: calls arriving within the quiet period coalesce into one
// refresh with the latest filter.
func (s *RosterService) Search(ctx context.Context, filter models.StudentFilter) (models.DataSource, error) {
	return s.search.Call(ctx, filter)
}

// LoadClasses replaces the current class collection.
func (s *RosterService) LoadClasses(ctx context.Context) (models.DataSource, error) {
	classes, source, err := withFallback(ctx, s, "list_classes",
		func(ctx context.Context) ([]models.Class, error) {
			classes, err := s.gateway.ListClasses(ctx)
			if err == nil {
				s.warm(ctx, "classes", func(ctx context.Context) error { return s.mirror.ReplaceClasses(ctx, classes) })
			}
			return classes, err
		},
		func(ctx context.Context) ([]models.Class, error) {
			snap, err := s.mirror.Load(ctx)
			if err != nil {
				return nil, err
			}
			return snap.Classes, nil
		},
	)
	if err != nil {
		return source, err
	}
	s.mu.Lock()
	s.classes = classes
	s.classSource = source
	s.mu.Unlock()
	return source, nil
}

// SortedView yields the current collection ordered by field; an empty field uses the sticky
// sort. Each iteration takes a fresh snapshot, so the sequence can be ranged over repeatedly.
func (s *RosterService) SortedView(field models.SortField) iter.Seq[models.Student] {
	return func(yield func(models.Student) bool) {
		s.mu.RLock()
		if field == "" {
			field = s.sort
		}
		items := slices.Clone(s.students)
		s.mu.RUnlock()

		SortStudents(items, field)
		for _, student := range items {
			if !yield(student) {
				return
			}
		}
	}
}

// SortStudents orders students in place: names by pt-BR collation, ages by birth date
// ascending so younger students come last.
func SortStudents(students []models.Student, field models.SortField) {
	switch field {
	case models.SortByAge:
		slices.SortStableFunc(students, func(a, b models.Student) int {
			return a.BirthDate.Compare(b.BirthDate.Time)
		})
	default:
		collator := collate.New(language.BrazilianPortuguese)
		slices.SortStableFunc(students, func(a, b models.Student) int {
			return collator.CompareString(a.Name, b.Name)
		})
	}
}

// SetSort validates and persists the sticky sort field.
func (s *RosterService) SetSort(ctx context.Context, raw string) (models.SortField, error) {
	field, err := models.ParseSortField(raw)
	if err != nil {
		return "", appErrors.Validation("ordenação inválida", map[string]string{"sort": "use nome ou idade"})
	}
	s.mu.Lock()
	s.sort = field
	s.mu.Unlock()
	if err := s.mirror.SetPreference(ctx, repository.MirrorKeySort, string(field)); err != nil {
		s.logger.Warn("failed to persist sort preference", zap.String("sort", string(field)), zap.Error(err))
	}
	return field, nil
}

// Save validates the form, then updates (id present) or creates the student.
func (s *RosterService) Save(ctx context.Context, req dto.StudentRequest) (*SaveResult, error) {
	edit := s.beginEdit(req.ID)
	defer s.endEdit(edit)

	edit.advance(models.EditValidating)
	req = s.validator.Normalize(req)
	if err := s.validator.Validate(req); err != nil {
		edit.advance(models.EditValidationFailed)
		edit.advance(models.EditEditing)
		return nil, err
	}
	edit.advance(models.EditPersisting)

	birth, _ := models.ParseDate(req.BirthDate)
	student := models.Student{
		ID:        req.ID,
		Name:      req.Name,
		BirthDate: birth,
		Email:     req.Email,
		Status:    models.StudentStatus(req.Status),
		ClassID:   req.ClassID,
	}

	result := &SaveResult{}
	var classSource models.DataSource
	if student.ClassID == nil && req.ClassName != "" {
		class, created, source, err := s.resolveClass(ctx, req.ClassName)
		if err != nil {
			return nil, err
		}
		student.ClassID = &class.ID
		if created {
			result.ClassCreated = class
			classSource = source
		}
	}

	var (
		saved  *models.Student
		source models.DataSource
		err    error
	)
	if student.ID != 0 {
		saved, source, err = withFallback(ctx, s, "update_student",
			func(ctx context.Context) (*models.Student, error) {
				return s.gateway.UpdateStudent(ctx, student.ID, student.Payload())
			},
			func(ctx context.Context) (*models.Student, error) {
				return s.mirror.UpdateStudent(ctx, student)
			},
		)
	} else {
		saved, source, err = withFallback(ctx, s, "create_student",
			func(ctx context.Context) (*models.Student, error) {
				return s.gateway.CreateStudent(ctx, student.Payload())
			},
			func(ctx context.Context) (*models.Student, error) {
				return s.mirror.CreateLocalStudent(ctx, student)
			},
		)
	}
	if err != nil {
		if result.ClassCreated != nil {
			s.discardClass(ctx, *result.ClassCreated, classSource)
		}
		return nil, err
	}
	if source == models.SourceRemote && saved.ID != 0 {
		record := *saved
		s.warm(ctx, "student", func(ctx context.Context) error {
			_, err := s.mirror.UpsertStudent(ctx, record)
			return err
		})
	}

	s.refreshAfterWrite(ctx)
	result.Student = *saved
	result.Source = source
	return result, nil
}

// Delete removes a student, gateway first.
func (s *RosterService) Delete(ctx context.Context, id int64) (models.DataSource, error) {
	if id <= 0 {
		return "", appErrors.Validation("identificador inválido", map[string]string{"id": "deve ser positivo"})
	}
	_, source, err := withFallback(ctx, s, "delete_student",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.gateway.DeleteStudent(ctx, id)
		},
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.mirror.DeleteStudent(ctx, id)
		},
	)
	if err != nil {
		return source, err
	}
	if source == models.SourceRemote {
		s.warm(ctx, "delete", func(ctx context.Context) error {
			if err := s.mirror.DeleteStudent(ctx, id); err != nil && !errors.Is(err, appErrors.ErrNotFound) {
				return err
			}
			return nil
		})
	}
	s.refreshAfterWrite(ctx)
	return source, nil
}

// Enroll links a student to a class through the gateway only. Failures leave state untouched.
func (s *RosterService) Enroll(ctx context.Context, studentID, classID int64) (*models.Student, error) {
	if studentID <= 0 || classID <= 0 {
		return nil, appErrors.Validation("matrícula inválida", map[string]string{"aluno_id": "obrigatório", "turma_id": "obrigatório"})
	}
	returned, err := s.gateway.Enroll(ctx, models.Enrollment{StudentID: studentID, ClassID: classID})
	if err != nil {
		s.logger.Warn("enrollment failed", zap.Int64("aluno_id", studentID), zap.Int64("turma_id", classID), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	students := slices.Clone(s.students)
	var updated *models.Student
	for i := range students {
		if students[i].ID != studentID {
			continue
		}
		if returned != nil {
			students[i] = *returned
		} else {
			id := classID
			students[i].ClassID = &id
		}
		record := students[i]
		updated = &record
		break
	}
	if updated == nil && returned != nil {
		updated = returned
	}
	s.students = students
	s.indicators = models.ComputeIndicators(students)
	s.mu.Unlock()

	if updated != nil {
		record := *updated
		s.warm(ctx, "enrollment", func(ctx context.Context) error {
			_, err := s.mirror.UpsertStudent(ctx, record)
			return err
		})
	}
	return updated, nil
}

// Status pings the gateway and reports the view-model state.
func (s *RosterService) Status(ctx context.Context) models.RosterStatus {
	status := models.RosterStatus{
		GatewayConfigured: s.gateway.Configured(),
		CheckedAt:         time.Now().UTC(),
	}
	if status.GatewayConfigured {
		if err := s.gateway.Ping(ctx); err != nil {
			status.GatewayError = err.Error()
		} else {
			status.GatewayReachable = true
		}
	}
	s.mu.RLock()
	status.LastSource = s.source
	status.Sort = s.sort
	status.Indicators = s.indicators
	s.mu.RUnlock()
	return status
}

// Students returns a copy of the current collection in its stored order.
func (s *RosterService) Students() []models.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.students)
}

// Classes returns a copy of the current class collection.
func (s *RosterService) Classes() []models.Class {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.classes)
}

// Indicators returns the counts computed on the last refresh.
func (s *RosterService) Indicators() models.Indicators {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indicators
}

// Filter returns the filter of the last refresh.
func (s *RosterService) Filter() models.StudentFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Sort returns the sticky sort field.
func (s *RosterService) Sort() models.SortField {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sort
}

// Source reports where the current collection came from.
func (s *RosterService) Source() models.DataSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// ClassName returns the name of the class with the given id, or "".
func (s *RosterService) ClassName(id *int64) string {
	if id == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, class := range s.classes {
		if class.ID == *id {
			return class.Name
		}
	}
	return ""
}

// resolveClass maps a free-text class name to a class: known classes first, then the
// gateway, then the mirror. Classes not loaded from the gateway are reloaded before matching.
func (s *RosterService) resolveClass(ctx context.Context, name string) (*models.Class, bool, models.DataSource, error) {
	s.mu.RLock()
	stale := s.classSource != models.SourceRemote
	s.mu.RUnlock()
	if stale {
		if _, err := s.LoadClasses(ctx); err != nil {
			s.logger.Warn("class reload before resolve failed", zap.Error(err))
		}
	}
	if class, ok := repository.FindClassByName(s.Classes(), name); ok {
		return &class, false, "", nil
	}
	type resolved struct {
		class   *models.Class
		created bool
	}
	res, source, err := withFallback(ctx, s, "create_class",
		func(ctx context.Context) (resolved, error) {
			class, err := s.gateway.CreateClass(ctx, models.ClassPayload{
				Name:     name,
				Capacity: s.cfg.DefaultClassCapacity,
				Level:    s.cfg.DefaultClassLevel,
			})
			return resolved{class: class, created: true}, err
		},
		func(ctx context.Context) (resolved, error) {
			class, created, err := s.mirror.ResolveOrCreateClassByName(ctx, name, s.cfg.DefaultClassLevel, s.cfg.DefaultClassCapacity)
			return resolved{class: class, created: created}, err
		},
	)
	if err != nil {
		return nil, false, source, err
	}

	s.mu.Lock()
	classes := s.classes
	if _, known := repository.FindClassByName(classes, res.class.Name); !known {
		classes = append(slices.Clone(classes), *res.class)
		s.classes = classes
	}
	classSource := s.classSource
	s.mu.Unlock()

	if source == models.SourceRemote && classSource == models.SourceRemote {
		s.warm(ctx, "classes", func(ctx context.Context) error { return s.mirror.ReplaceClasses(ctx, classes) })
	}
	s.logger.Info("class resolved from free text",
		zap.String("name", name),
		zap.Int64("class_id", res.class.ID),
		zap.Bool("created", res.created),
		zap.String("source", string(source)),
	)
	return res.class, res.created, source, nil
}

// discardClass undoes a class created for a student write that then failed. The backend has no
// delete endpoint for classes, so a remotely created class stays and is only logged.
func (s *RosterService) discardClass(ctx context.Context, class models.Class, source models.DataSource) {
	s.mu.Lock()
	s.classes = slices.DeleteFunc(slices.Clone(s.classes), func(c models.Class) bool { return c.ID == class.ID })
	s.mu.Unlock()

	if source != models.SourceLocal {
		s.logger.Warn("class created on backend left without students",
			zap.Int64("class_id", class.ID), zap.String("name", class.Name))
		return
	}
	if err := s.mirror.DeleteClass(ctx, class.ID); err != nil && !errors.Is(err, appErrors.ErrNotFound) {
		s.logger.Warn("failed to discard mirror class", zap.Int64("class_id", class.ID), zap.Error(err))
	}
}

func (s *RosterService) refreshAfterWrite(ctx context.Context) {
	if _, err := s.Refresh(ctx, s.Filter()); err != nil {
		s.logger.Warn("refresh after write failed", zap.Error(err))
	}
}

// warm reflects successful remote results into the mirror; failures are only logged.
func (s *RosterService) warm(ctx context.Context, what string, write func(context.Context) error) {
	if err := write(ctx); err != nil {
		s.logger.Warn("mirror warm-up failed", zap.String("what", what), zap.Error(err))
	}
}

// withFallback is the single place deciding between the gateway and the mirror: only a
// gateway-unavailable error routes the operation to the local store.
func withFallback[T any](ctx context.Context, s *RosterService, operation string, remote, local func(context.Context) (T, error)) (T, models.DataSource, error) {
	result, err := remote(ctx)
	if err == nil {
		return result, models.SourceRemote, nil
	}
	var zero T
	if !repository.IsGatewayUnavailable(err) {
		return zero, models.SourceRemote, err
	}
	s.logger.Warn("gateway unavailable, using local mirror", zap.String("operation", operation), zap.Error(err))
	if s.metrics != nil {
		s.metrics.RecordFallback(operation)
	}
	result, err = local(ctx)
	if err != nil {
		return zero, models.SourceLocal, err
	}
	return result, models.SourceLocal, nil
}

type editSession struct {
	key    string
	state  models.EditState
	trail  []models.EditState
	logger *zap.Logger
}

func (s *RosterService) beginEdit(id int64) *editSession {
	key := "new"
	if id != 0 {
		key = fmt.Sprintf("%d", id)
	}
	edit := &editSession{key: key, state: models.EditIdle, trail: []models.EditState{models.EditIdle}, logger: s.logger}
	edit.advance(models.EditEditing)
	return edit
}

func (s *RosterService) endEdit(edit *editSession) {
	edit.advance(models.EditIdle)
	s.mu.Lock()
	s.lastEdit = edit.trail
	s.mu.Unlock()
}

// advance moves to the next state when the lifecycle allows it.
func (e *editSession) advance(to models.EditState) {
	if e.state == to {
		return
	}
	if !models.CanTransition(e.state, to) {
		e.logger.Debug("edit transition rejected",
			zap.String("record", e.key),
			zap.String("from", string(e.state)),
			zap.String("to", string(to)),
		)
		return
	}
	e.logger.Debug("edit transition",
		zap.String("record", e.key),
		zap.String("from", string(e.state)),
		zap.String("to", string(to)),
	)
	e.state = to
	e.trail = append(e.trail, to)
}
