package main

import (
	"context"

	"dagger/lamdag/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintTargets are the package patterns golangci-lint checks. The _examples
// tree is not part of the module and is never linted.
var lintTargets = []string{"./api/...", "./cli/...", "./cmd/...", "./pkg/..."}

// linter is goContainer with golangci-lint installed.
func (l *Lamdag) linter() *dagger.Container {
	return l.goContainer().
		WithExec([]string{
			"go", "install",
			"github.com/golangci/golangci-lint/v2/cmd/golangci-lint@" + golangciLintVersion,
		})
}

func lintArgs(extra ...string) []string {
	args := append([]string{"golangci-lint", "run", "--config", ".golangci.yml"}, extra...)
	return append(args, lintTargets...)
}

// CheckLint reports lint findings in the engine, server and command packages.
//
// +check
func (l *Lamdag) CheckLint(ctx context.Context) (string, error) {
	return l.linter().
		WithExec(lintArgs()).
		Stdout(ctx)
}

// FixLint applies golangci-lint's automatic fixes and returns the source
// directory with them.
func (l *Lamdag) FixLint() *dagger.Directory {
	return l.linter().
		WithExec(lintArgs("--fix")).
		Directory("/src")
}
