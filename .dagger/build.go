package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/lamdag/internal/dagger"
)

// Build and return directory of go binaries
func (l *Lamdag) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// define build matrix
	gooses := []string{"linux", "darwin"}
	goarches := []string{"amd64", "arm64"}

	// create empty directory to put build artifacts
	outputs := dag.Directory()

	// go-sqlite3 needs cgo, so cross builds go through zig cc.
	golang := l.goContainer().
		WithExec([]string{"sh", "-c", "curl -sSfL https://ziglang.org/download/0.14.1/zig-x86_64-linux-0.14.1.tar.xz | tar -xJ -C /opt"}).
		WithEnvVariable("PATH", "/opt/zig-x86_64-linux-0.14.1:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true})

	for _, goos := range gooses {
		for _, goarch := range goarches {
			// create directory for each OS and architecture
			path := fmt.Sprintf("%s/%s/", goos, goarch)

			// build artifact
			build := golang.
				WithEnvVariable("GOOS", goos).
				WithEnvVariable("GOARCH", goarch).
				WithEnvVariable("CC", fmt.Sprintf("zig cc -target %s", zigTarget(goos, goarch))).
				WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/lamdag"}).
				WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/lamdagapi"})

			// add build to outputs
			outputs = outputs.WithDirectory(path, build.Directory(path))
		}
	}

	// return build directory
	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (l *Lamdag) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/lamdag/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/lamdag/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/lamdag/pkg/utils.Buildtime=%s'", buildtime),
	}

	return l.Build(ctx, strings.Join(ldflags, " "))
}

// zigTarget maps a Go platform to the zig cc target triple.
func zigTarget(goos, goarch string) string {
	arch := map[string]string{"amd64": "x86_64", "arm64": "aarch64"}[goarch]
	if goos == "darwin" {
		return arch + "-macos"
	}
	return arch + "-linux-gnu"
}
