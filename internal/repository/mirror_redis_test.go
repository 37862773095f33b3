package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the two commands the mirror issues; any other call panics on the nil
// embedded interface.
type fakeRedis struct {
	redis.Cmdable

	data      map[string]string
	mgetKeys  [][]string
	mgetErr   error
	execErr   error
	setOrders [][]string
}

func (f *fakeRedis) MGet(_ context.Context, keys ...string) *redis.SliceCmd {
	f.mgetKeys = append(f.mgetKeys, keys)
	if f.mgetErr != nil {
		return redis.NewSliceResult(nil, f.mgetErr)
	}
	vals := make([]interface{}, len(keys))
	for i, key := range keys {
		if v, ok := f.data[key]; ok {
			vals[i] = v
		}
	}
	return redis.NewSliceResult(vals, nil)
}

func (f *fakeRedis) TxPipelined(_ context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	pipe := &fakePipeline{values: map[string]string{}}
	if err := fn(pipe); err != nil {
		return nil, err
	}
	f.setOrders = append(f.setOrders, pipe.order)
	if f.execErr != nil {
		return nil, f.execErr
	}
	if f.data == nil {
		f.data = map[string]string{}
	}
	for key, value := range pipe.values {
		f.data[key] = value
	}
	return nil, nil
}

type fakePipeline struct {
	redis.Pipeliner

	order  []string
	values map[string]string
}

func (p *fakePipeline) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	p.order = append(p.order, key)
	switch v := value.(type) {
	case []byte:
		p.values[key] = string(v)
	case string:
		p.values[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func TestRedisMirrorRead(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]string
		keys    []string
		want    map[string][]byte
		wantErr bool
		mgetErr error
	}{
		{
			name: "maps values by position and skips missing keys",
			data: map[string]string{"r:alunos": `[{"id":1}]`, "r:pendentes": `[]`},
			keys: []string{"r:alunos", "r:turmas", "r:pendentes"},
			want: map[string][]byte{"r:alunos": []byte(`[{"id":1}]`), "r:pendentes": []byte(`[]`)},
		},
		{
			name: "no keys skips the round trip",
			want: map[string][]byte{},
		},
		{
			name:    "command error is wrapped",
			keys:    []string{"r:alunos"},
			mgetErr: errors.New("connection reset"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeRedis{data: tt.data, mgetErr: tt.mgetErr}
			backend := NewRedisMirrorBackend(client)

			values, err := backend.Read(context.Background(), tt.keys...)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.mgetErr)
				assert.Contains(t, err.Error(), "redis mget")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, values)
			if len(tt.keys) == 0 {
				assert.Empty(t, client.mgetKeys)
			} else {
				assert.Equal(t, [][]string{tt.keys}, client.mgetKeys)
			}
		})
	}
}

func TestRedisMirrorWriteAllOrder(t *testing.T) {
	client := &fakeRedis{}
	mirror := NewMirrorRepository(NewRedisMirrorBackend(client), "r:", nil)
	ctx := context.Background()

	require.NoError(t, mirror.Save(ctx, sampleStudents(), sampleClasses()))

	assert.Equal(t, [][]string{{"r:turmas", "r:alunos", "r:pendentes"}}, client.setOrders)
	snap, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleStudents(), snap.Students)
	assert.Equal(t, sampleClasses(), snap.Classes)
}

func TestRedisMirrorWriteAllExecError(t *testing.T) {
	execErr := errors.New("EXECABORT")
	client := &fakeRedis{execErr: execErr}
	backend := NewRedisMirrorBackend(client)

	err := backend.WriteAll(context.Background(), []MirrorEntry{{Key: "turmas", Value: []byte(`[]`)}})
	require.Error(t, err)
	assert.ErrorIs(t, err, execErr)
	assert.Empty(t, client.data)

	require.NoError(t, backend.WriteAll(context.Background(), nil))
	assert.Len(t, client.setOrders, 1)
}
