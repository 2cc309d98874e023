// Package workload is the dispatch core: the frozen catalog of boot
// binaries, the per-workload lifecycle state machine, and the queue that
// hands out exactly one workload at a time per requesting client.
//
// # Lifecycle
//
//	Unassigned → Assigned → Downloading → Booting → Reported → Finished
//	     any non-terminal ────────────────────────────────────→ Failed
//
// Download completion and the beacon boot notification race into Booting;
// both edges are accepted and the second is a no-op. Finished and Failed
// are terminal.
//
// The Registry is the sole mutator of lifecycle state. Its guard is held
// only across a state inspection-and-update — never across a byte stream —
// so a slow download cannot starve other clients.
package workload
