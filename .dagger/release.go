package main

import (
	"context"
	"fmt"
	"path"

	"dagger/lamdag/internal/dagger"
)

// bucket is an S3 compatible bucket that release binaries are synced to.
type bucket struct {
	endpoint        *dagger.Secret
	name            *dagger.Secret
	accessKeyID     *dagger.Secret
	secretAccessKey *dagger.Secret
}

// publish syncs artifacts, plus a SHA256SUMS file, under each prefix.
func (b *bucket) publish(ctx context.Context, artifacts *dagger.Directory, prefixes ...string) error {
	name, err := b.name.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("reading bucket name: %w", err)
	}
	endpoint, err := b.endpoint.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("reading bucket endpoint: %w", err)
	}

	ctr := dag.Container().
		From("amazon/aws-cli:latest").
		WithSecretVariable("AWS_ACCESS_KEY_ID", b.accessKeyID).
		WithSecretVariable("AWS_SECRET_ACCESS_KEY", b.secretAccessKey).
		WithEnvVariable("AWS_DEFAULT_REGION", "auto").
		WithDirectory("/release", artifacts).
		WithWorkdir("/release").
		WithExec([]string{"sh", "-c", "find . -type f ! -name SHA256SUMS | sort | xargs sha256sum > SHA256SUMS"})

	for _, prefix := range prefixes {
		dest := "s3://" + path.Join(name, prefix)
		ctr = ctr.WithExec([]string{"aws", "s3", "sync", ".", dest, "--endpoint-url", endpoint})
	}

	if _, err := ctr.Sync(ctx); err != nil {
		return fmt.Errorf("syncing release to %v: %w", prefixes, err)
	}
	return nil
}

// Release builds lamdag and lamdagapi for every target and publishes them
// under the version and under "latest".
func (l *Lamdag) Release(
	ctx context.Context,

	// Version tag, e.g. "v0.3.0"
	version string,

	// Git commit SHA
	commit string,

	endpoint *dagger.Secret,
	bucketName *dagger.Secret,
	accessKeyID *dagger.Secret,
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	b := &bucket{endpoint: endpoint, name: bucketName, accessKeyID: accessKeyID, secretAccessKey: secretAccessKey}

	artifacts := l.BuildRelease(ctx, version, commit)
	return artifacts, b.publish(ctx, artifacts, version, "latest")
}

// Nightly builds the current commit and publishes it under "nightly".
func (l *Lamdag) Nightly(
	ctx context.Context,

	// Git commit SHA
	commit string,

	endpoint *dagger.Secret,
	bucketName *dagger.Secret,
	accessKeyID *dagger.Secret,
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	b := &bucket{endpoint: endpoint, name: bucketName, accessKeyID: accessKeyID, secretAccessKey: secretAccessKey}

	artifacts := l.BuildRelease(ctx, "nightly", commit)
	return artifacts, b.publish(ctx, artifacts, "nightly")
}
