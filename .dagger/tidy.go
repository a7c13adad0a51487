package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/lamdag/internal/dagger"
)

// CheckGoModTidy fails when go.mod or go.sum differ from what "go mod tidy"
// would write.
//
// +check
func (l *Lamdag) CheckGoModTidy(ctx context.Context) (string, error) {
	_, err := l.goContainer().
		WithExec([]string{"go", "mod", "tidy", "-diff"}).
		Sync(ctx)

	var execErr *dagger.ExecError
	switch {
	case errors.As(err, &execErr):
		return "", fmt.Errorf("module files need tidying, run 'go mod tidy':\n\n%s", execErr.Stdout)
	case err != nil:
		return "", fmt.Errorf("running go mod tidy: %w", err)
	}
	return "go.mod and go.sum are tidy", nil
}
