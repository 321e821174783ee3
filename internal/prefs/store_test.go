package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreDefaults(t *testing.T) {
	s := New(NewMemoryKV())

	assert.Equal(t, AllSensors, s.SelectedSensor())
	assert.False(t, s.DarkMode())
	assert.Empty(t, s.Pinned())
	assert.Equal(t, ViewCombined, s.View("Gyroscope"))
	assert.Equal(t, AxisAll, s.AxisFilter("Gyroscope"))
}

func TestTogglePinTwiceRestoresOrder(t *testing.T) {
	kv := NewMemoryKV()
	s := New(kv)
	require.NoError(t, s.TogglePin("Light"))
	require.NoError(t, s.TogglePin("Gyroscope"))
	before := s.Pinned()

	require.NoError(t, s.TogglePin("Accelerometer"))
	assert.Equal(t, []string{"Light", "Gyroscope", "Accelerometer"}, s.Pinned())
	require.NoError(t, s.TogglePin("Accelerometer"))
	assert.Equal(t, before, s.Pinned())

	raw, ok := kv.Get(KeyPinnedSensors)
	require.True(t, ok)
	assert.Equal(t, `["Light","Gyroscope"]`, raw)
}

func TestTogglePinRemovesExisting(t *testing.T) {
	s := New(NewMemoryKV())
	require.NoError(t, s.TogglePin("Light"))
	require.NoError(t, s.TogglePin("Light"))
	assert.False(t, s.IsPinned("Light"))

	// Emptied list persists as [] rather than null.
	raw, _ := s.kv.Get(KeyPinnedSensors)
	assert.Equal(t, "[]", raw)
}

func TestAxisFilterValidation(t *testing.T) {
	s := New(NewMemoryKV())
	require.NoError(t, s.SetAxisFilter("Rotation", "E"))
	assert.Equal(t, "E", s.AxisFilter("Rotation"))
	assert.Error(t, s.SetAxisFilter("Rotation", "Q"))
	assert.Equal(t, "E", s.AxisFilter("Rotation"))
}

func TestFileKVPersistsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.toml")

	kv, err := OpenFile(path)
	require.NoError(t, err)
	s := New(kv)
	require.NoError(t, s.SetSelectedSensor("Gyroscope"))
	require.NoError(t, s.TogglePin("Step"))
	require.NoError(t, s.SetView("Gyroscope", ViewSeparate))
	require.NoError(t, s.SetAxisFilter("Gyroscope", "Y"))
	s.SetDarkMode(true)

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	s2 := New(reopened)
	assert.Equal(t, "Gyroscope", s2.SelectedSensor())
	assert.Equal(t, []string{"Step"}, s2.Pinned())
	assert.Equal(t, ViewSeparate, s2.View("Gyroscope"))
	assert.Equal(t, "Y", s2.AxisFilter("Gyroscope"))
	assert.False(t, s2.DarkMode(), "dark mode is session-only")
}

func TestFileKVFailedWriteKeepsMemory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prefs")
	path := filepath.Join(dir, "prefs.toml")

	kv, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(KeySelectedSensor, "Light"))

	// Replace the directory with a plain file so the next write fails.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, nil, 0644))

	assert.Error(t, kv.Set(KeySelectedSensor, "Gyroscope"))
	got, ok := kv.Get(KeySelectedSensor)
	require.True(t, ok)
	assert.Equal(t, "Light", got)

	assert.Error(t, kv.Set(KeyPinnedSensors, `["Step"]`))
	_, ok = kv.Get(KeyPinnedSensors)
	assert.False(t, ok)
}

func TestOpenFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is = = not toml"), 0644))

	_, err := OpenFile(path)
	assert.Error(t, err)
}

func TestCorruptPinnedListIsIgnored(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(KeyPinnedSensors, "{not json"))
	require.NoError(t, kv.Set(KeySelectedSensor, ""))

	s := New(kv)
	assert.Empty(t, s.Pinned())
	assert.Equal(t, AllSensors, s.SelectedSensor())
}
