// Package engine implements the local-first synchronization core.
//
// The engine sits between callers (UI, CLI) and two collaborators: the
// local store and the remote gateway. Reads are served from the store
// when it is populated, falling back to the network; writes are applied
// optimistically to the store and queued for replay when the network is
// unavailable. The pending-write queue is drained strictly in FIFO
// order, at most one drain at a time.
//
// Per logical entity the engine moves through three states:
//
//	Synced -> (local mutation) -> PendingLocal -> (drain success) -> Synced
//	PendingLocal -> (drain exhausted or rejected) -> Failed
//
// Failed is terminal and surfaced through the SyncFailed callback,
// never silently dropped.
package engine
