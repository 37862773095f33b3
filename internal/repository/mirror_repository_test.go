package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster/internal/models"
	appErrors "github.com/noah-isme/sma-roster/pkg/errors"
	"github.com/noah-isme/sma-roster/pkg/storage"
)

func newFileMirror(t *testing.T, prefix string) (*MirrorRepository, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return NewMirrorRepository(NewFileMirrorBackend(store), prefix, nil), dir
}

func int64Ptr(v int64) *int64 { return &v }

func sampleStudents() []models.Student {
	return []models.Student{
		{ID: 7, Name: "Ana", BirthDate: models.NewDate(2010, time.March, 4), Email: "ana@escola.br", Status: models.StudentStatusActive, ClassID: int64Ptr(1)},
		{ID: 2, Name: "Beto", BirthDate: models.NewDate(2011, time.June, 9), Status: models.StudentStatusInactive},
	}
}

func sampleClasses() []models.Class {
	return []models.Class{{ID: 1, Name: "1º Ano A", Capacity: 30, Level: "Ensino Médio"}}
}

func TestMirrorLoadEmpty(t *testing.T) {
	mirror, _ := newFileMirror(t, "")
	snap, err := mirror.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Students)
	assert.NotNil(t, snap.Students)
	assert.Empty(t, snap.Classes)
}

func TestMirrorSaveLoadRoundTrip(t *testing.T) {
	mirror, dir := newFileMirror(t, "roster_")
	ctx := context.Background()

	require.NoError(t, mirror.Save(ctx, sampleStudents(), sampleClasses()))
	snap, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleStudents(), snap.Students)
	assert.Equal(t, sampleClasses(), snap.Classes)

	_, err = os.Stat(filepath.Join(dir, "roster_alunos.json"))
	assert.NoError(t, err)
}

func TestMirrorCorruptDataDegradesToEmpty(t *testing.T) {
	mirror, dir := newFileMirror(t, "")
	ctx := context.Background()
	require.NoError(t, mirror.Save(ctx, sampleStudents(), sampleClasses()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alunos.json"), []byte(`[{"id":1,`), 0o644))

	snap, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Students)
	assert.Equal(t, sampleClasses(), snap.Classes)
}

func TestNextID(t *testing.T) {
	assert.Equal(t, int64(1), models.NextID([]models.Student{}))
	assert.Equal(t, int64(8), models.NextID([]models.Student{{ID: 3}, {ID: 7}, {ID: 1}}))
	assert.Equal(t, int64(8), models.NextID([]models.Student{{ID: 7}, {ID: 1}, {ID: 3}}))
	assert.Equal(t, int64(2), models.NextID(sampleClasses()))
}

func TestMirrorUpsertStudent(t *testing.T) {
	mirror, _ := newFileMirror(t, "")
	ctx := context.Background()
	require.NoError(t, mirror.Save(ctx, sampleStudents(), sampleClasses()))

	created, err := mirror.UpsertStudent(ctx, models.Student{Name: "Carla", Status: models.StudentStatusActive})
	require.NoError(t, err)
	assert.Equal(t, int64(8), created.ID)

	replaced, err := mirror.UpsertStudent(ctx, models.Student{ID: 2, Name: "Roberto", Status: models.StudentStatusActive})
	require.NoError(t, err)
	assert.Equal(t, int64(2), replaced.ID)

	snap, err := mirror.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Students, 3)
	assert.Equal(t, "Roberto", snap.Students[1].Name)
	assert.Equal(t, "Carla", snap.Students[2].Name)
}

func TestMirrorUpdateUnknownIsNotFound(t *testing.T) {
	mirror, _ := newFileMirror(t, "")
	_, err := mirror.UpdateStudent(context.Background(), models.Student{ID: 42, Name: "Nobody"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestMirrorDeleteTwiceReportsNotFound(t *testing.T) {
	mirror, _ := newFileMirror(t, "")
	ctx := context.Background()
	require.NoError(t, mirror.Save(ctx, sampleStudents(), sampleClasses()))

	require.NoError(t, mirror.DeleteStudent(ctx, 7))
	after, err := mirror.Load(ctx)
	require.NoError(t, err)

	err = mirror.DeleteStudent(ctx, 7)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	again, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, after, again)
	require.Len(t, again.Students, 1)
	assert.Equal(t, int64(2), again.Students[0].ID)
}

func TestMirrorResolveOrCreateClassByName(t *testing.T) {
	mirror, _ := newFileMirror(t, "")
	ctx := context.Background()
	require.NoError(t, mirror.Save(ctx, nil, sampleClasses()))

	existing, created, err := mirror.ResolveOrCreateClassByName(ctx, "  1º ano a ", "Fundamental", 30)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1), existing.ID)

	fresh, created, err := mirror.ResolveOrCreateClassByName(ctx, "2º Ano B", "Fundamental", 25)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.Class{ID: 2, Name: "2º Ano B", Capacity: 25, Level: "Fundamental"}, *fresh)

	snap, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Classes, 2)

	_, _, err = mirror.ResolveOrCreateClassByName(ctx, " ", "Fundamental", 30)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestMirrorPreference(t *testing.T) {
	mirror, _ := newFileMirror(t, "")
	ctx := context.Background()

	_, ok, err := mirror.Preference(ctx, MirrorKeySort)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mirror.SetPreference(ctx, MirrorKeySort, "idade"))
	value, ok, err := mirror.Preference(ctx, MirrorKeySort)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "idade", value)
}

type recordingBackend struct {
	data   map[string][]byte
	writes [][]string
}

func (b *recordingBackend) Read(_ context.Context, keys ...string) (map[string][]byte, error) {
	out := map[string][]byte{}
	for _, k := range keys {
		if v, ok := b.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (b *recordingBackend) WriteAll(_ context.Context, entries []MirrorEntry) error {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		b.data[e.Key] = e.Value
		keys = append(keys, e.Key)
	}
	b.writes = append(b.writes, keys)
	return nil
}

func TestMirrorSaveWritesClassesBeforeStudents(t *testing.T) {
	backend := &recordingBackend{data: map[string][]byte{}}
	mirror := NewMirrorRepository(backend, "", nil)
	require.NoError(t, mirror.Save(context.Background(), sampleStudents(), sampleClasses()))
	assert.Equal(t, [][]string{{MirrorKeyClasses, MirrorKeyStudents, MirrorKeyPending}}, backend.writes)
}

func studentNames(students []models.Student) map[int64]string {
	names := make(map[int64]string, len(students))
	for _, s := range students {
		names[s.ID] = s.Name
	}
	return names
}

func TestMirrorReplaceStudentsKeepsOfflineCreations(t *testing.T) {
	mirror, _ := newFileMirror(t, "")
	ctx := context.Background()
	require.NoError(t, mirror.Save(ctx, sampleStudents(), sampleClasses()))

	carla, err := mirror.CreateLocalStudent(ctx, models.Student{Name: "Carla", Status: models.StudentStatusActive})
	require.NoError(t, err)
	assert.Equal(t, int64(8), carla.ID)

	// Beto was deleted on the backend while we were offline.
	remote := []models.Student{sampleStudents()[0]}
	require.NoError(t, mirror.ReplaceStudents(ctx, remote))

	snap, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{7: "Ana", 8: "Carla"}, studentNames(snap.Students))
	assert.Equal(t, []int64{8}, snap.Pending)
}

func TestMirrorReplaceStudentsReassignsCollidingOfflineID(t *testing.T) {
	mirror, _ := newFileMirror(t, "")
	ctx := context.Background()
	require.NoError(t, mirror.Save(ctx, sampleStudents(), sampleClasses()))

	_, err := mirror.CreateLocalStudent(ctx, models.Student{Name: "Carla"})
	require.NoError(t, err)

	remote := append(sampleStudents(), models.Student{ID: 8, Name: "Davi"})
	require.NoError(t, mirror.ReplaceStudents(ctx, remote))

	snap, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{7: "Ana", 2: "Beto", 8: "Davi", 9: "Carla"}, studentNames(snap.Students))
	assert.Equal(t, []int64{9}, snap.Pending)
}

func TestMirrorUpsertMovesPendingRecordOnIDCollision(t *testing.T) {
	mirror, _ := newFileMirror(t, "")
	ctx := context.Background()
	require.NoError(t, mirror.Save(ctx, sampleStudents(), sampleClasses()))

	_, err := mirror.CreateLocalStudent(ctx, models.Student{Name: "Carla"})
	require.NoError(t, err)
	_, err = mirror.UpsertStudent(ctx, models.Student{ID: 8, Name: "Davi"})
	require.NoError(t, err)

	snap, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{7: "Ana", 2: "Beto", 8: "Davi", 9: "Carla"}, studentNames(snap.Students))
	assert.Equal(t, []int64{9}, snap.Pending)
}

func TestMirrorDeleteClearsPending(t *testing.T) {
	mirror, _ := newFileMirror(t, "")
	ctx := context.Background()
	require.NoError(t, mirror.Save(ctx, sampleStudents(), sampleClasses()))

	carla, err := mirror.CreateLocalStudent(ctx, models.Student{Name: "Carla"})
	require.NoError(t, err)
	require.NoError(t, mirror.DeleteStudent(ctx, carla.ID))

	snap, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Pending)

	require.NoError(t, mirror.ReplaceStudents(ctx, sampleStudents()))
	snap, err = mirror.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Students, 2)
}

func TestMirrorDeleteClass(t *testing.T) {
	mirror, _ := newFileMirror(t, "")
	ctx := context.Background()
	require.NoError(t, mirror.Save(ctx, nil, sampleClasses()))

	require.NoError(t, mirror.DeleteClass(ctx, 1))
	snap, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Classes)

	assert.True(t, errors.Is(mirror.DeleteClass(ctx, 1), appErrors.ErrNotFound))
}
