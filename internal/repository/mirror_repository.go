package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster/internal/models"
	appErrors "github.com/noah-isme/sma-roster/pkg/errors"
)

// Mirror keys, stored under an optional prefix.
const (
	MirrorKeyStudents = "alunos"
	MirrorKeyClasses  = "turmas"
	MirrorKeySort     = "sort"
	MirrorKeyPending  = "pendentes"
)

// MirrorEntry is a single key/value pair written by a backend.
type MirrorEntry struct {
	Key   string
	Value []byte
}

// MirrorBackend is the durable key-value store behind the mirror. WriteAll must apply the
// entries in order, atomically where the store supports it.
type MirrorBackend interface {
	Read(ctx context.Context, keys ...string) (map[string][]byte, error)
	WriteAll(ctx context.Context, entries []MirrorEntry) error
}

// MirrorSnapshot is the persisted copy of both collections. Pending lists the ids of students
// created while the backend was unreachable; the backend has never seen them.
type MirrorSnapshot struct {
	Students []models.Student
	Classes  []models.Class
	Pending  []int64
}

// MirrorRepository is the local fallback store providing CRUD semantics equivalent to the
// backend over whole-collection reads and writes.
type MirrorRepository struct {
	backend MirrorBackend
	prefix  string
	logger  *zap.Logger

	mu sync.Mutex
}

// NewMirrorRepository wraps a backend.
func NewMirrorRepository(backend MirrorBackend, keyPrefix string, logger *zap.Logger) *MirrorRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MirrorRepository{backend: backend, prefix: keyPrefix, logger: logger}
}

// Load returns the persisted collections. Missing or corrupt data yields empty collections.
func (r *MirrorRepository) Load(ctx context.Context) (MirrorSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Save persists both collections, classes first, and clears the pending set.
func (r *MirrorRepository) Save(ctx context.Context, students []models.Student, classes []models.Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, MirrorSnapshot{Students: students, Classes: classes})
}

// ReplaceStudents overwrites the student collection with the backend's list, keeping classes.
// Pending students missing from the list are kept; a pending student whose id the backend now
// uses for another record is moved to a fresh id.
func (r *MirrorRepository) ReplaceStudents(ctx context.Context, students []models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load(ctx)
	if err != nil {
		return err
	}
	merged := slices.Clone(nonNil(students))
	remoteIDs := make(map[int64]struct{}, len(merged))
	for _, s := range merged {
		remoteIDs[s.ID] = struct{}{}
	}
	pending := pendingSet(snap.Pending)

	var kept, moved []models.Student
	var dropped []int64
	for _, local := range snap.Students {
		_, isPending := pending[local.ID]
		_, onRemote := remoteIDs[local.ID]
		switch {
		case isPending && !onRemote:
			kept = append(kept, local)
		case isPending && onRemote:
			moved = append(moved, local)
		case !onRemote:
			dropped = append(dropped, local.ID)
		}
	}
	merged = append(merged, kept...)
	nextPending := make([]int64, 0, len(kept)+len(moved))
	for _, s := range kept {
		nextPending = append(nextPending, s.ID)
	}
	for _, local := range moved {
		oldID := local.ID
		local.ID = models.NextID(merged)
		merged = append(merged, local)
		nextPending = append(nextPending, local.ID)
		r.logger.Warn("pending student id taken by backend, reassigned",
			zap.Int64("old_id", oldID), zap.Int64("new_id", local.ID), zap.String("nome", local.Name))
	}
	if len(dropped) > 0 {
		r.logger.Info("mirror students absent from backend removed", zap.Int64s("ids", dropped))
	}
	if len(nextPending) > 0 {
		r.logger.Info("mirror keeping students created offline", zap.Int64s("ids", nextPending))
	}
	snap.Students = merged
	snap.Pending = nextPending
	return r.save(ctx, snap)
}

// ReplaceClasses overwrites the class collection, keeping students.
func (r *MirrorRepository) ReplaceClasses(ctx context.Context, classes []models.Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, err := r.encode(MirrorKeyClasses, nonNil(classes))
	if err != nil {
		return err
	}
	return r.backend.WriteAll(ctx, []MirrorEntry{entry})
}

// UpsertStudent stores a record confirmed by the backend: it inserts the record when its id is
// absent, or replaces the stored record with the same id. A pending student holding that id is
// moved to a fresh id first. A zero id is assigned the next free identifier.
func (r *MirrorRepository) UpsertStudent(ctx context.Context, student models.Student) (*models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if student.ID == 0 {
		student.ID = models.NextID(snap.Students)
	}
	idx := indexOfStudent(snap.Students, student.ID)
	if idx >= 0 && slices.Contains(snap.Pending, student.ID) {
		local := snap.Students[idx]
		local.ID = models.NextID(append(slices.Clone(snap.Students), student))
		snap.Students[idx] = local
		snap.Pending = replaceID(snap.Pending, student.ID, local.ID)
		r.logger.Warn("pending student id taken by backend, reassigned",
			zap.Int64("old_id", student.ID), zap.Int64("new_id", local.ID), zap.String("nome", local.Name))
		idx = -1
	}
	if idx >= 0 {
		snap.Students[idx] = student
	} else {
		snap.Students = append(snap.Students, student)
	}
	if err := r.save(ctx, snap); err != nil {
		return nil, err
	}
	return &student, nil
}

// CreateLocalStudent stores a student created while the backend is unreachable under the next
// free id and marks it pending.
func (r *MirrorRepository) CreateLocalStudent(ctx context.Context, student models.Student) (*models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	student.ID = models.NextID(snap.Students)
	snap.Students = append(snap.Students, student)
	snap.Pending = append(snap.Pending, student.ID)
	if err := r.save(ctx, snap); err != nil {
		return nil, err
	}
	return &student, nil
}

// UpdateStudent replaces an existing record, reporting NOT_FOUND when the id is unknown.
func (r *MirrorRepository) UpdateStudent(ctx context.Context, student models.Student) (*models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfStudent(snap.Students, student.ID)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("aluno %d não encontrado", student.ID))
	}
	snap.Students[idx] = student
	if err := r.save(ctx, snap); err != nil {
		return nil, err
	}
	return &student, nil
}

// DeleteStudent removes a record, reporting NOT_FOUND when absent.
func (r *MirrorRepository) DeleteStudent(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load(ctx)
	if err != nil {
		return err
	}
	idx := indexOfStudent(snap.Students, id)
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("aluno %d não encontrado", id))
	}
	snap.Students = slices.Delete(slices.Clone(snap.Students), idx, idx+1)
	snap.Pending = slices.DeleteFunc(slices.Clone(snap.Pending), func(p int64) bool { return p == id })
	return r.save(ctx, snap)
}

// DeleteClass removes a class, reporting NOT_FOUND when absent.
func (r *MirrorRepository) DeleteClass(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load(ctx)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(snap.Classes, func(c models.Class) bool { return c.ID == id })
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("turma %d não encontrada", id))
	}
	snap.Classes = slices.Delete(slices.Clone(snap.Classes), idx, idx+1)
	return r.save(ctx, snap)
}

// ResolveOrCreateClassByName matches name case-insensitively against stored classes,
// creating and persisting a new class when nothing matches.
func (r *MirrorRepository) ResolveOrCreateClassByName(ctx context.Context, name, defaultLevel string, capacity int) (*models.Class, bool, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, false, appErrors.Validation("turma inválida", map[string]string{"turma": "nome da turma obrigatório"})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load(ctx)
	if err != nil {
		return nil, false, err
	}
	if class, ok := FindClassByName(snap.Classes, trimmed); ok {
		return &class, false, nil
	}
	class := models.Class{
		ID:       models.NextID(snap.Classes),
		Name:     trimmed,
		Capacity: capacity,
		Level:    defaultLevel,
	}
	snap.Classes = append(snap.Classes, class)
	if err := r.save(ctx, snap); err != nil {
		return nil, false, err
	}
	r.logger.Info("mirror class created", zap.Int64("class_id", class.ID), zap.String("name", class.Name))
	return &class, true, nil
}

// Preference reads a UI preference. The boolean is false when nothing is stored.
func (r *MirrorRepository) Preference(ctx context.Context, key string) (string, bool, error) {
	values, err := r.backend.Read(ctx, r.key(key))
	if err != nil {
		return "", false, fmt.Errorf("read preference %s: %w", key, err)
	}
	raw, ok := values[r.key(key)]
	if !ok || len(raw) == 0 {
		return "", false, nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		r.logger.Warn("mirror preference corrupt, ignoring", zap.String("key", key), zap.Error(err))
		return "", false, nil
	}
	return value, true, nil
}

// SetPreference persists a UI preference.
func (r *MirrorRepository) SetPreference(ctx context.Context, key, value string) error {
	entry, err := r.encode(key, value)
	if err != nil {
		return err
	}
	return r.backend.WriteAll(ctx, []MirrorEntry{entry})
}

// FindClassByName returns the class whose trimmed name equals name ignoring case.
func FindClassByName(classes []models.Class, name string) (models.Class, bool) {
	target := strings.TrimSpace(name)
	for _, class := range classes {
		if strings.EqualFold(strings.TrimSpace(class.Name), target) {
			return class, true
		}
	}
	return models.Class{}, false
}

func (r *MirrorRepository) load(ctx context.Context) (MirrorSnapshot, error) {
	studentsKey, classesKey, pendingKey := r.key(MirrorKeyStudents), r.key(MirrorKeyClasses), r.key(MirrorKeyPending)
	values, err := r.backend.Read(ctx, studentsKey, classesKey, pendingKey)
	if err != nil {
		return MirrorSnapshot{}, fmt.Errorf("read mirror: %w", err)
	}
	snap := MirrorSnapshot{
		Students: decodeCollection[models.Student](r.logger, MirrorKeyStudents, values[studentsKey]),
		Classes:  decodeCollection[models.Class](r.logger, MirrorKeyClasses, values[classesKey]),
		Pending:  decodeCollection[int64](r.logger, MirrorKeyPending, values[pendingKey]),
	}
	snap.Pending = slices.DeleteFunc(snap.Pending, func(id int64) bool {
		return indexOfStudent(snap.Students, id) < 0
	})
	return snap, nil
}

func (r *MirrorRepository) save(ctx context.Context, snap MirrorSnapshot) error {
	classesEntry, err := r.encode(MirrorKeyClasses, nonNil(snap.Classes))
	if err != nil {
		return err
	}
	studentsEntry, err := r.encode(MirrorKeyStudents, nonNil(snap.Students))
	if err != nil {
		return err
	}
	pendingEntry, err := r.encode(MirrorKeyPending, nonNil(snap.Pending))
	if err != nil {
		return err
	}
	if err := r.backend.WriteAll(ctx, []MirrorEntry{classesEntry, studentsEntry, pendingEntry}); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	return nil
}

// decodeCollection never fails: absent or corrupt data becomes an empty collection.
func decodeCollection[T any](logger *zap.Logger, key string, raw []byte) []T {
	items := []T{}
	if len(raw) == 0 {
		return items
	}
	var decoded []T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		corrupt := appErrors.Wrap(err, appErrors.ErrStorageCorrupt.Code, appErrors.ErrStorageCorrupt.Status, appErrors.ErrStorageCorrupt.Message)
		logger.Warn("mirror data corrupt, using empty collection", zap.String("key", key), zap.Error(corrupt))
		return items
	}
	return nonNil(decoded)
}

func (r *MirrorRepository) encode(key string, value interface{}) (MirrorEntry, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return MirrorEntry{}, fmt.Errorf("encode %s: %w", key, err)
	}
	return MirrorEntry{Key: r.key(key), Value: raw}, nil
}

func (r *MirrorRepository) key(name string) string {
	return r.prefix + name
}

func indexOfStudent(students []models.Student, id int64) int {
	for i, s := range students {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func pendingSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func replaceID(ids []int64, from, to int64) []int64 {
	out := slices.Clone(ids)
	for i, id := range out {
		if id == from {
			out[i] = to
		}
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
