package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestResolveLayoutDefaults(t *testing.T) {
	root := t.TempDir()
	viper.Reset()

	l := ResolveLayout(root)

	if got, want := l.DatabasePath, filepath.Join(root, "database", "obby.db"); got != want {
		t.Errorf("DatabasePath = %q, want %q", got, want)
	}
	if got, want := l.NotesDir, filepath.Join(root, "notes"); got != want {
		t.Errorf("NotesDir = %q, want %q", got, want)
	}
	if got, want := l.DailyNotesDir, filepath.Join(root, "notes", "daily"); got != want {
		t.Errorf("DailyNotesDir = %q, want %q", got, want)
	}
	if got, want := l.WatchFile, filepath.Join(root, ".obbywatch"); got != want {
		t.Errorf("WatchFile = %q, want %q", got, want)
	}
	if got, want := l.IgnoreFile, filepath.Join(root, ".obbyignore"); got != want {
		t.Errorf("IgnoreFile = %q, want %q", got, want)
	}
}

func TestResolveLayoutHonorsOverrides(t *testing.T) {
	root := t.TempDir()
	viper.Reset()
	defer viper.Reset()

	custom := filepath.Join(root, "custom.db")
	viper.Set("database.path", custom)

	l := ResolveLayout(root)
	if l.DatabasePath != custom {
		t.Errorf("DatabasePath = %q, want override %q", l.DatabasePath, custom)
	}
}

func TestEnsureDirsCreatesLayout(t *testing.T) {
	root := t.TempDir()
	viper.Reset()

	l := ResolveLayout(root)
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	for _, d := range []string{filepath.Dir(l.DatabasePath), l.NotesDir, l.DailyNotesDir, l.SummariesDir, l.CrashLogDir} {
		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", d)
		}
	}
}
