package output

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	biosim "biosim-runner"
	"biosim-runner/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriter(t *testing.T) {
	tests := []struct {
		layout string
		want   Writer
	}{
		{layout: "", want: &FlatWriter{Dir: "out"}},
		{layout: "flat", want: &FlatWriter{Dir: "out"}},
		{layout: "FLAT", want: &FlatWriter{Dir: "out"}},
		{layout: "logdir", want: &LogDirWriter{Dir: "out"}},
		{layout: "none", want: NullWriter{}},
	}

	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			w, err := NewWriter(tt.layout, "out")
			require.NoError(t, err)
			assert.Equal(t, tt.want, w)
		})
	}

	t.Run("empty dir is the working directory", func(t *testing.T) {
		w, err := NewWriter("flat", "")
		require.NoError(t, err)
		assert.Equal(t, &FlatWriter{Dir: "."}, w)
	})

	t.Run("unknown layout", func(t *testing.T) {
		_, err := NewWriter("tree", "out")
		var vErr *biosim.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "layout", vErr.Field)
	})
}

func TestFlatWriterIndentsPayload(t *testing.T) {
	dir := t.TempDir()
	w := &FlatWriter{Dir: dir}
	require.NoError(t, w.Open("run"))

	path, err := w.WriteResult("7", json.RawMessage(`{"b":1,"a":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "simulation_7.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": [\n    1,\n    2\n  ]\n}", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestFlatWriterOverwrites(t *testing.T) {
	dir := t.TempDir()
	w := &FlatWriter{Dir: dir}
	require.NoError(t, w.Open("run"))

	_, err := w.WriteResult("1", json.RawMessage(`{"v":1}`))
	require.NoError(t, err)
	path, err := w.WriteResult("1", json.RawMessage(`{"v":2}`))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(data))
}

func TestFlatWriterInvalidPayloadLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	w := &FlatWriter{Dir: dir}
	require.NoError(t, w.Open("run"))

	_, err := w.WriteResult("3", json.RawMessage(`{"broken":`))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriterRejectsUnsafeIDs(t *testing.T) {
	for _, id := range []models.SimulationID{"", ".", "..", "../x", `a\b`, "a/b", "a\x00b"} {
		t.Run(string(id), func(t *testing.T) {
			dir := t.TempDir()
			for _, w := range []Writer{&FlatWriter{Dir: dir}, &LogDirWriter{Dir: dir}} {
				require.NoError(t, w.Open("run"))
				_, err := w.WriteResult(id, json.RawMessage(`{}`))
				var vErr *biosim.ValidationError
				assert.True(t, errors.As(err, &vErr), "%T accepted id %q", w, id)
			}
		})
	}
}

func TestLogDirWriter(t *testing.T) {
	dir := t.TempDir()
	w := &LogDirWriter{Dir: dir}
	require.NoError(t, w.Open("run"))
	require.NoError(t, w.WriteConfig([]byte("<biosim/>")))

	path, err := w.WriteResult("12", json.RawMessage(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs", "sim_12", "result.json"), path)

	config, err := os.ReadFile(filepath.Join(w.SimDir("12"), "config.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<biosim/>", string(config))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"ok\": true\n}", string(data))

	require.NoError(t, w.Close())
}

func TestLogDirWriterWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	w := &LogDirWriter{Dir: dir}
	require.NoError(t, w.Open("run"))

	_, err := w.WriteResult("5", json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(w.SimDir("5"), "config.xml"))
	assert.True(t, os.IsNotExist(err))
}

func TestNullWriter(t *testing.T) {
	var w NullWriter
	require.NoError(t, w.Open("run"))
	require.NoError(t, w.WriteConfig([]byte("x")))
	path, err := w.WriteResult("1", json.RawMessage(`not even json`))
	require.NoError(t, err)
	assert.Empty(t, path)
	require.NoError(t, w.Close())
}
