package version

// Version is the sessioncast CLI version string. Overridden at build time via
// -ldflags "-X github.com/sessioncast/sessioncast-cli/internal/version.Version=...".
var Version = "1.0.0-dev"
