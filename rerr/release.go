//go:build release
// +build release

package rerr

// Debug is false under the release build tag; see debug.go.
const Debug = false
