package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/paneferry/paneferry/internal/events"
	"github.com/paneferry/paneferry/internal/models"
	"github.com/paneferry/paneferry/internal/vfs"
)

// SessionState is the lifecycle of one transfer request.
type SessionState string

const (
	SessionPending   SessionState = "pending"
	SessionRunning   SessionState = "running"
	SessionCompleted SessionState = "completed"
	SessionCancelled SessionState = "cancelled"
	SessionFailed    SessionState = "failed"
)

// item is one resolved file to transfer, produced by source expansion.
type item struct {
	src     vfs.Location
	dst     vfs.Location
	entry   vfs.Entry
	rootIdx int // index of the source argument this item was expanded from
}

// session tracks the mutable state of one in-flight copy/move request. It is
// owned exclusively by the engine and destroyed when the request reaches a
// terminal state.
type session struct {
	spec      Spec
	startedAt time.Time

	mu     sync.Mutex
	state  SessionState
	sticky *events.PromptDecision // set when a prompt reply applies to all

	promptMu sync.Mutex // at most one overwrite prompt outstanding per batch

	items    []item
	outcomes []models.ItemOutcome // indexed parallel to items

	// pre-resolution outcomes (skipped directories, failed stats) recorded
	// before the item list was final
	preOutcomes []models.ItemOutcome

	batchTotal int64
	batchSoFar atomic.Int64

	// dirs visited per source root during expansion, deepest last; used to
	// clean up source directories after a fully successful move
	sourceDirs [][]vfs.Location

	// rebased destination paths of the same directories, parents first;
	// created before any file runs so empty directories survive
	destDirs [][]string

	// every destination directory for this root was created; a root that
	// expanded to zero files is only cleaned up at the source when this
	// holds
	rootReady []bool

	createdMu   sync.Mutex
	createdDirs map[string]bool

	aborted atomic.Bool // abort-on-first-error tripped
}

func newSession(spec Spec) *session {
	return &session{
		spec:        spec,
		startedAt:   time.Now(),
		state:       SessionPending,
		createdDirs: make(map[string]bool),
		sourceDirs:  make([][]vfs.Location, len(spec.Sources)),
		destDirs:    make([][]string, len(spec.Sources)),
		rootReady:   make([]bool, len(spec.Sources)),
	}
}

func (s *session) setState(st SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *session) setOutcome(idx int, o models.ItemOutcome) {
	s.mu.Lock()
	s.outcomes[idx] = o
	s.mu.Unlock()
}

// stickyDecision returns the batch-wide prompt decision, if one was made.
func (s *session) stickyDecision() (events.PromptDecision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sticky == nil {
		return events.PromptDecision{}, false
	}
	return *s.sticky, true
}

func (s *session) setSticky(d events.PromptDecision) {
	s.mu.Lock()
	s.sticky = &d
	s.mu.Unlock()
}

// markDirCreated reports whether the destination directory still needs a
// mkdir, claiming it when it does.
func (s *session) markDirCreated(path string) bool {
	s.createdMu.Lock()
	defer s.createdMu.Unlock()
	if s.createdDirs[path] {
		return false
	}
	s.createdDirs[path] = true
	return true
}

// finalize builds the single OperationResult for this session.
func (s *session) finalize(kind models.OperationKind) *models.OperationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]models.ItemOutcome, 0, len(s.preOutcomes)+len(s.outcomes))
	items = append(items, s.preOutcomes...)
	items = append(items, s.outcomes...)

	return &models.OperationResult{
		RequestID:        s.spec.RequestID,
		Kind:             kind,
		Items:            items,
		BytesTransferred: s.batchSoFar.Load(),
		WallTime:         time.Since(s.startedAt),
	}
}

// rootSucceeded reports whether every item expanded from the given source
// argument succeeded. Move only removes source directories of fully moved
// trees.
func (s *session) rootSucceeded(rootIdx int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	any := false
	for i, it := range s.items {
		if it.rootIdx != rootIdx {
			continue
		}
		any = true
		if s.outcomes[i].State != models.ItemSucceeded {
			return false
		}
	}
	if !any {
		// A directory can expand to zero files; replaying it at the
		// destination is then the whole transfer.
		return s.rootReady[rootIdx]
	}
	return true
}
