package sds

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("SYSDS_HOST", "127.0.0.1:9000")
	t.Setenv("SYSDS_MEMORY", "2GiB")
	t.Setenv("SYSDS_NUM_PARALLEL", "3")
	t.Setenv("SYSDS_COMPRESSION", "zstd")
	t.Setenv("SYSDS_STARTUP_TIMEOUT", "5s")

	cfg := ConfigFromEnvironment()
	require.Equal(t, "http://127.0.0.1:9000", cfg.Host)
	require.Equal(t, ByteSize(2<<30), cfg.Memory)
	require.Equal(t, 3, cfg.NumParallel)
	require.Equal(t, "zstd", cfg.Compression)
	require.Equal(t, 5*time.Second, cfg.StartupTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SYSDS_COMPRESSION", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "sysds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory: 512MiB\nnum_parallel: 2\nforce_dense: true\nworkdir: "+dir+"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ByteSize(512<<20), cfg.Memory)
	require.Equal(t, 2, cfg.NumParallel)
	require.True(t, cfg.ForceDense)
	require.Equal(t, dir, cfg.WorkDir)
	require.Equal(t, "512 MiB", cfg.Memory.String())
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Config{}.withDefaults(), true},
		{"compression", Config{NumParallel: 1, Compression: "gzip"}, false},
		{"parallel", Config{NumParallel: 100, Compression: "none"}, false},
		{"host", Config{NumParallel: 1, Compression: "none", Host: "not a url"}, false},
		{"workdir", Config{NumParallel: 1, Compression: "none", WorkDir: "/does/not/exist"}, false},
		{"remote", Config{NumParallel: 8, Compression: "zstd", Host: "http://engine:8765"}, true},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory: lots\n"), 0o644))
	_, err := LoadConfig(path)
	require.Error(t, err)
}
