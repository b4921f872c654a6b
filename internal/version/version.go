// Package version records the release version reported by the CLI.
package version

// Current is the semantic version of this build, without a "v" prefix.
const Current = "0.1.0"
