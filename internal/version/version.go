package version

var (
	// Version is the semantic version of the binary, set via ldflags.
	Version = "dev"
	// Commit is the git commit hash, set via ldflags.
	Commit = "unknown"
	// BuildDate is the build timestamp, set via ldflags.
	BuildDate = "unknown"
)
