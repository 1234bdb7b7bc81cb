package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSource_Enabled(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"settings block true", "settings:\n  defold_hot_reload: true\n", true},
		{"settings block false", "settings:\n  defold_hot_reload: false\n", false},
		{"top level true", "defold_hot_reload: true\n", true},
		{"settings block wins", "defold_hot_reload: true\nsettings:\n  defold_hot_reload: false\n", false},
		{"string is not bool", "settings:\n  defold_hot_reload: \"true\"\n", false},
		{"number is not bool", "defold_hot_reload: 1\n", false},
		{"key missing", "settings:\n  other: true\n", false},
		{"empty file", "", false},
		{"json project file", `{"folders": [{"path": "."}], "settings": {"defold_hot_reload": true}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewFileSource(writeSettings(t, tt.content), "")
			got, err := src.Enabled(context.Background())
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFileSource_MissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "absent.yaml"), DefaultKey)

	got, err := src.Enabled(context.Background())

	require.NoError(t, err)
	require.False(t, got)
}

func TestFileSource_MalformedFile(t *testing.T) {
	src := NewFileSource(writeSettings(t, "settings: [unclosed\n"), DefaultKey)

	got, err := src.Enabled(context.Background())

	require.Error(t, err)
	require.False(t, got)
}

func TestFileSource_ReadsFreshEveryCall(t *testing.T) {
	path := writeSettings(t, "settings:\n  defold_hot_reload: false\n")
	src := NewFileSource(path, DefaultKey)

	got, err := src.Enabled(context.Background())
	require.NoError(t, err)
	require.False(t, got)

	require.NoError(t, os.WriteFile(path, []byte("settings:\n  defold_hot_reload: true\n"), 0o644))

	got, err = src.Enabled(context.Background())
	require.NoError(t, err)
	require.True(t, got)
}

func TestFileSource_CustomKey(t *testing.T) {
	src := NewFileSource(writeSettings(t, "settings:\n  live_reload: true\n"), "live_reload")

	got, err := src.Enabled(context.Background())

	require.NoError(t, err)
	require.True(t, got)
}

func TestNewFileSource_Defaults(t *testing.T) {
	src := NewFileSource("", "")
	require.Equal(t, DefaultFile, src.Path())
	require.Equal(t, DefaultKey, src.key)
}

func TestStatic(t *testing.T) {
	on, _ := Static(true).Enabled(context.Background())
	off, _ := Static(false).Enabled(context.Background())
	require.True(t, on)
	require.False(t, off)
}
