// Package shutdown holds the fixed EFI poweroff image served to boot
// clients once the dispatch queue is exhausted. The artifact is embedded at
// build time: every exhausted request receives the identical bytes, and no
// lifecycle state is touched when it is served.
package shutdown

import (
	_ "embed"
)

//go:embed poweroff.efi
var artifact []byte

// ContentType is the served content-type of the shutdown artifact.
const ContentType = "application/efi"

// Artifact returns the embedded poweroff image bytes. Callers must not
// mutate the returned slice.
func Artifact() []byte {
	return artifact
}

// Size returns the declared byte size of the artifact.
func Size() int64 {
	return int64(len(artifact))
}
