package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster/pkg/config"
)

func TestOpenMirrorBackendRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		mirror func(dir string) config.MirrorConfig
	}{
		{
			name: "file",
			mirror: func(dir string) config.MirrorConfig {
				return config.MirrorConfig{Driver: config.MirrorDriverFile, Dir: dir}
			},
		},
		{
			name: "sqlite",
			mirror: func(dir string) config.MirrorConfig {
				return config.MirrorConfig{Driver: config.MirrorDriverSQLite, SQLitePath: filepath.Join(dir, "roster.db")}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := &config.Config{Mirror: tt.mirror(t.TempDir())}

			backend, closeBackend, err := OpenMirrorBackend(ctx, cfg)
			require.NoError(t, err)
			require.NotNil(t, closeBackend)
			t.Cleanup(closeBackend)

			mirror := NewMirrorRepository(backend, "diff:", nil)
			require.NoError(t, mirror.Save(ctx, sampleStudents(), sampleClasses()))

			snap, err := mirror.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, sampleStudents(), snap.Students)
			assert.Equal(t, sampleClasses(), snap.Classes)
		})
	}
}

func TestOpenMirrorBackendRedisUnreachable(t *testing.T) {
	cfg := &config.Config{
		Mirror: config.MirrorConfig{Driver: config.MirrorDriverRedis},
		Redis:  config.RedisConfig{Host: "127.0.0.1", Port: 1},
	}
	_, _, err := OpenMirrorBackend(context.Background(), cfg)
	assert.Error(t, err)
}
