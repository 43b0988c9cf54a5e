//go:build !release
// +build !release

package rerr

// Debug is true in debug builds (the default). Internal invariant checks
// that would be too costly or too loud in production, like the space
// accountant's envelope assertion, are gated on it; the workspace pool's
// overlap detection is selected by the same release build tag.
const Debug = true
