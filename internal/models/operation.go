// Package models holds the operation data model shared by the queue, the
// transfer engine and the presentation layer: requests, per-item outcomes and
// terminal results.
package models

import (
	"time"

	"github.com/paneferry/paneferry/internal/vfs"
)

// OperationKind enumerates the request kinds the queue accepts.
type OperationKind string

const (
	OpList   OperationKind = "list"
	OpCopy   OperationKind = "copy"
	OpMove   OperationKind = "move"
	OpDelete OperationKind = "delete"
	OpRename OperationKind = "rename"
	OpMkdir  OperationKind = "mkdir"
)

// OverwritePolicy decides what happens when a destination name already
// exists.
type OverwritePolicy string

const (
	// OverwriteSkip leaves the existing destination untouched and marks
	// the item Skipped.
	OverwriteSkip OverwritePolicy = "skip"
	// OverwriteReplace overwrites the existing destination.
	OverwriteReplace OverwritePolicy = "overwrite"
	// OverwriteRename writes under a suffixed name ("name (1).ext")
	// without touching the existing file.
	OverwriteRename OverwritePolicy = "rename-with-suffix"
	// OverwritePrompt surfaces a decision request to the presentation
	// layer and blocks only that item.
	OverwritePrompt OverwritePolicy = "prompt"
)

// Options carries the per-request behavior switches.
type Options struct {
	Overwrite          OverwritePolicy
	Recursive          bool
	PreserveTimestamps bool
	// AbortOnError stops the batch at the first failed item instead of
	// continuing with the remaining items.
	AbortOnError bool
	// IncludeHidden includes dot-entries in listings.
	IncludeHidden bool
}

// OperationRequest describes one unit of work submitted to the queue.
// Immutable once submitted.
type OperationRequest struct {
	Kind        OperationKind
	Sources     []vfs.Location
	Destination *vfs.Location // nil for list/delete
	Options     Options
}

// ItemState is the outcome of one resolved item within a request.
type ItemState string

const (
	ItemSucceeded ItemState = "succeeded"
	ItemSkipped   ItemState = "skipped"
	ItemFailed    ItemState = "failed"
	ItemCancelled ItemState = "cancelled"
)

// ItemOutcome records what happened to one item of the batch.
type ItemOutcome struct {
	Source vfs.Location
	Dest   vfs.Location // zero value when the request has no destination
	State  ItemState
	Bytes  int64
	Err    error // reason for failure or skip; nil on success
}

// OperationResult finalizes one request. Exactly one result is produced per
// submitted request, even on cancellation. Immutable once published.
type OperationResult struct {
	RequestID string
	Kind      OperationKind
	Items     []ItemOutcome
	// Entries carries the listing payload for OpList requests.
	Entries []vfs.Entry
	// BytesTransferred is the total payload moved by copy/move requests.
	BytesTransferred int64
	WallTime         time.Duration
	// Err is set when the request failed before any item work started
	// (invalid handle, bad arguments).
	Err error
}

// Succeeded counts items in the succeeded state.
func (r *OperationResult) Succeeded() int { return r.countState(ItemSucceeded) }

// Failed counts items in the failed state.
func (r *OperationResult) Failed() int { return r.countState(ItemFailed) }

// Skipped counts items in the skipped state.
func (r *OperationResult) Skipped() int { return r.countState(ItemSkipped) }

// Cancelled counts items in the cancelled state.
func (r *OperationResult) Cancelled() int { return r.countState(ItemCancelled) }

func (r *OperationResult) countState(s ItemState) int {
	n := 0
	for _, it := range r.Items {
		if it.State == s {
			n++
		}
	}
	return n
}

// RequestStatus reports where a submitted request currently is.
type RequestStatus string

const (
	StatusQueued   RequestStatus = "queued"
	StatusRunning  RequestStatus = "running"
	StatusTerminal RequestStatus = "terminal"
)
