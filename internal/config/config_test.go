package config

import (
	"testing"
)

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Ignore) != 0 || len(cfg.Changelists) != 0 {
		t.Errorf("missing file should yield empty config, got %+v", cfg)
	}
}

func TestSaveLoad(t *testing.T) {
	adminDir := t.TempDir()
	want := &Config{
		Ignore: []string{"**/*.o", "build/**"},
		Changelists: []Changelist{
			{Name: "docs", Patterns: []string{"docs/**", "*.md"}},
		},
	}
	if err := Save(adminDir, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(adminDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Ignore) != 2 || got.Ignore[0] != "**/*.o" {
		t.Errorf("Ignore = %v", got.Ignore)
	}
	if len(got.Changelists) != 1 || got.Changelists[0].Name != "docs" {
		t.Errorf("Changelists = %+v", got.Changelists)
	}
}

func TestChangelistFor(t *testing.T) {
	cfg := &Config{Changelists: []Changelist{
		{Name: "docs", Patterns: []string{"docs/**", "*.md"}},
		{Name: "build", Patterns: []string{"Makefile"}},
	}}
	tests := []struct {
		path string
		want string
	}{
		{"docs/guide/intro.txt", "docs"},
		{"README.md", "docs"},
		{"Makefile", "build"},
		{"src/main.go", ""},
	}
	for _, tt := range tests {
		if got := cfg.ChangelistFor(tt.path); got != tt.want {
			t.Errorf("ChangelistFor(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
