package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensor(t *testing.T) {
	ten, err := NewImageTensor(make([]float32, 3*2*4), 3, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 2, 4}, ten.Shape)

	_, err = NewImageTensor(make([]float32, 5), 3, 2, 4)
	assert.Error(t, err)
	_, err = NewImageTensor(nil, 3, 2, 4)
	assert.Error(t, err)
	_, err = NewImageTensor([]float32{}, 0, 2, 4)
	assert.Error(t, err)
}

func TestGPUConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultGPUConfig().Validate())

	cfg := DefaultGPUConfig()
	cfg.UseGPU = true
	assert.NoError(t, cfg.Validate())

	cfg.DeviceID = -1
	assert.Error(t, cfg.Validate())

	cfg.DeviceID = 0
	cfg.ArenaExtendStrategy = "sometimes"
	assert.Error(t, cfg.Validate())
}

func TestLibrarySearchPaths(t *testing.T) {
	name, err := LibraryName()
	if err != nil {
		t.Skip(err)
	}
	t.Setenv("ONNXRUNTIME_LIB", "/custom/"+name)

	cpu := LibrarySearchPaths(false)
	require.NotEmpty(t, cpu)
	assert.Equal(t, "/custom/"+name, cpu[0])

	gpu := LibrarySearchPaths(true)
	assert.Contains(t, gpu, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	assert.NotContains(t, cpu, filepath.Join("/opt/onnxruntime/gpu/lib", name))
}

func TestFindLibrary_FromEnv(t *testing.T) {
	name, err := LibraryName()
	if err != nil {
		t.Skip(err)
	}
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("stub"), 0o600))
	t.Setenv("ONNXRUNTIME_LIB", p)

	got, err := FindLibrary(false)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestInitRuntime_MissingExplicitPath(t *testing.T) {
	err := InitRuntime(filepath.Join(t.TempDir(), "nope.so"), false)
	assert.Error(t, err)
}
