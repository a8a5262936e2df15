// Package transport defines the overlay-network abstraction the front-end,
// reduction filter, and front-end reorderer depend on (spec §6, SPEC_FULL
// §4.9). Production wiring is out of scope (spec §1 Non-goals); this
// package exists so C4/C6/C7 depend only on the Transport interface, never
// on a concrete network.
package transport

import (
	"context"
	"time"
)

// PayloadTag identifies a broadcast/reduction stream: "sample", "gather",
// "ack", or "version".
type PayloadTag string

const (
	TagSample PayloadTag = "sample"
	TagGather PayloadTag = "gather"
	TagAck    PayloadTag = "ack"
	TagVersion PayloadTag = "version"
)

// Flags mirrors spec §6's daemon->filter payload flags bitset.
type Flags uint32

const (
	FlagLine Flags = 1 << iota
	FlagPC
	FlagCountRep
	FlagThreads
	FlagClearOnSample
	FlagPython
	FlagModuleOffset
)

// GraphPayload is the tuple shape shared by daemon->filter and
// filter->parent messages (spec §6): a serialized graph plus enough
// metadata for the reduction filter and topology planner to place its
// bits without inspecting the payload.
type GraphPayload struct {
	GraphBytes            []byte
	ChildWidthWords       int
	ChildLowestGlobalRank int
	Flags                 Flags
}

// SumResult is the leading-edge sum payload (spec §6) used for both ack
// accounting and version-mismatch detection.
type SumResult struct {
	Sum             int64
	RespondingCount int
	ExpectedCount   int
}

// ReductionFunc merges a batch of child payloads into one parent payload,
// matching C4's contract. Transport implementations invoke the filter
// registered for a tag at every interior overlay node.
type ReductionFunc func(ctx context.Context, batch []GraphPayload) (GraphPayload, error)

// Transport is the overlay network abstraction: broadcast a message down
// the tree, then asynchronously await the reduced ack or graph response.
// Every wait is non-blocking from the caller's perspective in the sense
// that Broadcast returns immediately with a token; AwaitAck/AwaitGraph are
// the explicit poll points, matching spec §4.7's "pending-ack tag" model.
type Transport interface {
	Broadcast(ctx context.Context, tag PayloadTag, body []byte) (ackToken string, err error)
	AwaitAck(ctx context.Context, ackToken string, timeout time.Duration) (SumResult, error)
	AwaitGraph(ctx context.Context, ackToken string, timeout time.Duration) (GraphPayload, error)
	RegisterFilter(tag PayloadTag, f ReductionFunc) error
}
