// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

// Version is the release tag for this build, reported to Sentry and /livez.
// Inject via: -X github.com/csdept/csweb/internal/buildinfo.Version=...
var Version = "dev"

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/csdept/csweb/internal/buildinfo.Commit=...
var Commit = ""
