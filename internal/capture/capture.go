// Package capture adapts an OS packet source into the channel.Payload
// stream the rest of the pipeline consumes. Packet capture itself is
// out of scope per spec.md §1; these adapters exist only so the
// composition root has something concrete to wire in.
package capture

import "context"

// Payload is one captured TCP payload, matching channel.Payload's
// shape exactly (kept as a distinct type so this package has no
// import-time dependency on internal/channel).
type Payload struct {
	SrcPort uint16
	DstPort uint16
	Data    []byte
}

// Source yields captured payloads until ctx is cancelled or an
// unrecoverable I/O error occurs (spec.md §7 kind 8 — fatal, reported
// up to the orchestrator).
type Source interface {
	// Run blocks, invoking onPayload for every IPv4+TCP payload seen,
	// until ctx is cancelled or a fatal error occurs.
	Run(ctx context.Context, onPayload func(Payload)) error
	// Close releases the underlying capture handle.
	Close() error
}
