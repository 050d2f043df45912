package main

import (
	"context"
	"fmt"
	"strings"

	"dagger/cspr/internal/dagger"
)

var releaseTargets = []struct{ goos, goarch string }{
	{"linux", "amd64"},
	{"linux", "arm64"},
	{"darwin", "amd64"},
	{"darwin", "arm64"},
}

// Release builds versioned binaries, checks that the linux/amd64 binary
// reports the expected version, and returns one tarball per target plus a
// SHA256SUMS file, ready to attach to a GitHub release.
func (c *Cspr) Release(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,
) (*dagger.Directory, error) {
	binaries := c.BuildRelease(ctx, version, commit)

	if err := c.checkVersion(ctx, binaries.File("linux/amd64/cspr"), version, commit); err != nil {
		return nil, err
	}

	archiver := dag.Container().
		From("alpine:3.21").
		WithDirectory("/bin-in", binaries).
		WithWorkdir("/out")

	archives := make([]string, 0, len(releaseTargets))
	for _, t := range releaseTargets {
		name := fmt.Sprintf("cspr_%s_%s_%s.tar.gz", strings.TrimPrefix(version, "v"), t.goos, t.goarch)
		archiver = archiver.WithExec([]string{
			"tar", "-czf", name, "-C", fmt.Sprintf("/bin-in/%s/%s", t.goos, t.goarch), "cspr",
		})
		archives = append(archives, name)
	}

	archiver = archiver.WithExec([]string{
		"sh", "-c", "sha256sum " + strings.Join(archives, " ") + " > SHA256SUMS",
	})

	return archiver.Directory("/out"), nil
}

// checkVersion runs "cspr version" and confirms the ldflags took effect.
func (c *Cspr) checkVersion(ctx context.Context, binary *dagger.File, version, commit string) error {
	out, err := dag.Container().
		From("alpine:3.21").
		WithFile("/usr/local/bin/cspr", binary).
		WithExec([]string{"cspr", "version"}).
		Stdout(ctx)
	if err != nil {
		return fmt.Errorf("failed to run release binary: %w", err)
	}

	for _, want := range []string{"Version: " + version, "Sha: " + commit} {
		if !strings.Contains(out, want) {
			return fmt.Errorf("release binary reported %q, want %q", strings.TrimSpace(out), want)
		}
	}
	return nil
}
