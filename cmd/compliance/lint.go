package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"skuldbot/compliance/pkg/cli"
	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack/validator"
	"skuldbot/compliance/pkg/policy/manager"
)

var lintCmd = &cobra.Command{
	Use:   "lint <file|dir>...",
	Short: "Validate pack files",
	Long: `Parse and validate policy pack files.

Directories are searched recursively for *.yaml and *.yml files. Each file is
parsed, then checked structurally (required fields, known actions, controls
and operators) and semantically (classifications exist in the lattice,
declared controls are used consistently).

Examples:
  # Lint one file
  compliance lint packs/acme-hipaa.yaml

  # Lint a directory, JSON output for CI
  compliance lint packs/ --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}

	report, err := lintPaths(manager.NewLoader(manager.DefaultLoaderConfig()), validator.NewValidator(lattice.Default()), args)
	if err != nil {
		return cli.NewCommandError("lint", err)
	}
	if err := f.FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if report.Failed() {
		return cli.ErrLintFailed
	}
	return nil
}

// lintPaths lints every file named in paths, expanding directories.
func lintPaths(loader *manager.Loader, v *validator.Validator, paths []string) (*cli.LintReport, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := loader.CollectFiles(p)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no pack files found in %v", paths)
	}

	report := &cli.LintReport{Files: make([]cli.LintResult, 0, len(files))}
	for _, file := range files {
		report.Files = append(report.Files, lintFile(loader, v, file))
	}
	return report, nil
}

func lintFile(loader *manager.Loader, v *validator.Validator, path string) cli.LintResult {
	result := cli.LintResult{Path: path}

	p, err := loader.LoadFile(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Pack = p.Ref().String()

	if err := v.Validate(p); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Valid = true
	return result
}
