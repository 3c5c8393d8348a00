package main

import (
	"testing"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack/validator"
	"skuldbot/compliance/pkg/policy/manager"
)

func newLintDeps() (*manager.Loader, *validator.Validator) {
	return manager.NewLoader(manager.DefaultLoaderConfig()), validator.NewValidator(lattice.Default())
}

func TestLintPathsValidFile(t *testing.T) {
	loader, v := newLintDeps()
	report, err := lintPaths(loader, v, []string{"testdata/packs/acme-hipaa.yaml"})
	if err != nil {
		t.Fatalf("lintPaths() error = %v", err)
	}
	if len(report.Files) != 1 {
		t.Fatalf("len(Files) = %d, want 1", len(report.Files))
	}
	got := report.Files[0]
	if !got.Valid || got.Error != "" {
		t.Errorf("lintPaths() = %+v, want valid", got)
	}
	if got.Pack != "acme-hipaa@1.0.0" {
		t.Errorf("Pack = %q, want %q", got.Pack, "acme-hipaa@1.0.0")
	}
	if report.Failed() {
		t.Error("Failed() = true for a valid file")
	}
}

func TestLintPathsInvalidFile(t *testing.T) {
	loader, v := newLintDeps()
	report, err := lintPaths(loader, v, []string{"testdata/invalid-pack.yaml"})
	if err != nil {
		t.Fatalf("lintPaths() error = %v", err)
	}
	if !report.Failed() {
		t.Fatal("Failed() = false for an invalid pack")
	}
	if report.Files[0].Error == "" {
		t.Error("invalid file should carry an error message")
	}
}

func TestLintPathsDirectory(t *testing.T) {
	loader, v := newLintDeps()
	report, err := lintPaths(loader, v, []string{"testdata/packs"})
	if err != nil {
		t.Fatalf("lintPaths() error = %v", err)
	}
	if len(report.Files) != 1 || !report.Files[0].Valid {
		t.Errorf("lintPaths(dir) = %+v, want one valid file", report.Files)
	}
}

func TestLintPathsNonexistent(t *testing.T) {
	loader, v := newLintDeps()
	if _, err := lintPaths(loader, v, []string{"testdata/nonexistent.yaml"}); err == nil {
		t.Error("lintPaths() with a missing path should return an error")
	}
}

func TestLintPathsEmptyDirectory(t *testing.T) {
	loader, v := newLintDeps()
	if _, err := lintPaths(loader, v, []string{t.TempDir()}); err == nil {
		t.Error("lintPaths() with no pack files should return an error")
	}
}
