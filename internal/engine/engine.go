// Package engine executes copy and move requests across identical or
// different providers with chunked streaming, progress reporting, conflict
// resolution, bounded retries and cooperative cancellation.
//
// Move is copy followed by delete-of-source, and the source is only deleted
// after the destination write is confirmed durable. Cross-provider move is
// therefore inherently non-atomic; that gap is accepted rather than papered
// over with a guarantee no transport can give.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/paneferry/paneferry/internal/diskspace"
	"github.com/paneferry/paneferry/internal/events"
	"github.com/paneferry/paneferry/internal/lister"
	"github.com/paneferry/paneferry/internal/logging"
	"github.com/paneferry/paneferry/internal/models"
	"github.com/paneferry/paneferry/internal/pathid"
	"github.com/paneferry/paneferry/internal/ratelimit"
	"github.com/paneferry/paneferry/internal/retry"
	"github.com/paneferry/paneferry/internal/util/buffers"
	"github.com/paneferry/paneferry/internal/vfs"
)

// maxItemWorkers caps intra-request parallelism even when both providers
// tolerate more.
const maxItemWorkers = 4

// Spec describes one copy or move request handed to the engine.
type Spec struct {
	RequestID string
	Move      bool
	Sources   []vfs.Location
	Dest      vfs.Location // destination directory
	Options   models.Options
}

// Engine orchestrates transfer sessions.
type Engine struct {
	reg      *vfs.Registry
	lst      *lister.Lister
	bus      *events.EventBus
	log      *logging.Logger
	retryCfg retry.Config
	limiter  *ratelimit.Limiter
}

// New creates a transfer engine over the given registry and event bus.
func New(reg *vfs.Registry, bus *events.EventBus) *Engine {
	return &Engine{
		reg:      reg,
		lst:      lister.New(reg),
		bus:      bus,
		log:      logging.NewLogger("engine"),
		retryCfg: retry.DefaultConfig(),
	}
}

// SetRateLimit caps sustained transfer throughput at bytesPerSecond across
// all concurrent items. 0 removes the cap.
func (e *Engine) SetRateLimit(bytesPerSecond int64) {
	if bytesPerSecond <= 0 {
		e.limiter = nil
		return
	}
	e.limiter = ratelimit.New(bytesPerSecond, bytesPerSecond)
}

// Run executes one transfer request to completion and returns its single
// terminal result. Cancellation is observed between chunks and between
// items; completed items stay, the in-progress item's partial destination is
// removed, and remaining items are marked cancelled.
func (e *Engine) Run(ctx context.Context, spec Spec) *models.OperationResult {
	sess := newSession(spec)

	kind := models.OpCopy
	if spec.Move {
		kind = models.OpMove
	}

	dstProv, err := e.reg.Get(spec.Dest.Handle)
	if err != nil {
		res := sess.finalize(kind)
		res.Err = err
		return res
	}

	sess.setState(SessionRunning)
	if err := e.resolve(ctx, sess); err != nil {
		if sess.outcomes == nil {
			sess.outcomes = make([]models.ItemOutcome, len(sess.items))
		}
		e.cancelRemaining(sess, 0)
		sess.setState(stateForError(err))
		res := sess.finalize(kind)
		if !errors.Is(err, context.Canceled) {
			res.Err = err
		}
		return res
	}

	if err := e.checkDestSpace(ctx, sess, dstProv); err != nil {
		for i := range sess.items {
			sess.setOutcome(i, failedOutcome(sess.items[i].src, err))
		}
		sess.setState(SessionFailed)
		res := sess.finalize(kind)
		res.Err = err
		return res
	}

	e.createDestDirs(ctx, sess, dstProv)

	workers := e.itemWorkers(sess, dstProv)
	e.executeItems(ctx, sess, workers)

	if spec.Move {
		e.cleanupMovedSources(ctx, sess)
	}

	switch {
	case ctx.Err() != nil:
		sess.setState(SessionCancelled)
	case sess.aborted.Load():
		sess.setState(SessionFailed)
	default:
		sess.setState(SessionCompleted)
	}

	res := sess.finalize(kind)
	e.log.Debug().
		Str("request", spec.RequestID).
		Int("succeeded", res.Succeeded()).
		Int("failed", res.Failed()).
		Int64("bytes", res.BytesTransferred).
		Msg("transfer finished")
	return res
}

// resolve expands the source list into the flat item batch: files pass
// through, directories expand depth-first when the request is recursive and
// are skipped with a SkippedDirectory outcome otherwise.
func (e *Engine) resolve(ctx context.Context, sess *session) error {
	spec := sess.spec

	dstProv, err := e.reg.Get(spec.Dest.Handle)
	if err != nil {
		return err
	}
	dstR := pathid.ForSeparator(dstProv.Separator())
	destRoot := dstR.Clean(spec.Dest.Path)

	for i, src := range spec.Sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		srcProv, err := e.reg.Get(src.Handle)
		if err != nil {
			sess.preOutcomes = append(sess.preOutcomes, failedOutcome(src, err))
			continue
		}
		srcR := pathid.ForSeparator(srcProv.Separator())
		srcPath := srcR.Clean(src.Path)

		entry, err := srcProv.Stat(ctx, srcPath)
		if err != nil {
			sess.preOutcomes = append(sess.preOutcomes, failedOutcome(src, err))
			continue
		}

		switch entry.Kind {
		case vfs.KindFile:
			sess.items = append(sess.items, item{
				src:     vfs.Location{Handle: src.Handle, Path: srcPath},
				dst:     vfs.Location{Handle: spec.Dest.Handle, Path: dstR.Join(destRoot, entry.Name)},
				entry:   entry,
				rootIdx: i,
			})
			sess.batchTotal += entry.Size

		case vfs.KindDir:
			if !spec.Options.Recursive {
				sess.preOutcomes = append(sess.preOutcomes, models.ItemOutcome{
					Source: src,
					State:  models.ItemSkipped,
					Err:    vfs.ErrSkippedDirectory,
				})
				continue
			}
			treeRoot := dstR.Join(destRoot, entry.Name)
			walkOpts := lister.Options{IncludeHidden: spec.Options.IncludeHidden}
			err := e.lst.Walk(ctx, vfs.Location{Handle: src.Handle, Path: srcPath}, walkOpts,
				func(path string, child vfs.Entry) error {
					switch child.Kind {
					case vfs.KindDir:
						dstPath, ok := pathid.Rebase(srcR, dstR, srcPath, path, treeRoot)
						if !ok {
							return fmt.Errorf("rebase %s under %s failed", path, srcPath)
						}
						sess.sourceDirs[i] = append(sess.sourceDirs[i], vfs.Location{Handle: src.Handle, Path: path})
						sess.destDirs[i] = append(sess.destDirs[i], dstPath)
						return nil
					case vfs.KindFile:
						dstPath, ok := pathid.Rebase(srcR, dstR, srcPath, path, treeRoot)
						if !ok {
							return fmt.Errorf("rebase %s under %s failed", path, srcPath)
						}
						sess.items = append(sess.items, item{
							src:     vfs.Location{Handle: src.Handle, Path: path},
							dst:     vfs.Location{Handle: spec.Dest.Handle, Path: dstPath},
							entry:   child,
							rootIdx: i,
						})
						sess.batchTotal += child.Size
						return nil
					default:
						// Symlinks and special files are reported, never
						// transferred.
						sess.preOutcomes = append(sess.preOutcomes, models.ItemOutcome{
							Source: vfs.Location{Handle: src.Handle, Path: path},
							State:  models.ItemSkipped,
							Err:    fmt.Errorf("%s entries are not transferred", child.Kind),
						})
						return nil
					}
				})
			if err != nil {
				// A half-walked tree is neither replayed at the
				// destination nor cleaned up at the source.
				sess.sourceDirs[i] = nil
				sess.destDirs[i] = nil
				if errors.Is(err, context.Canceled) {
					return err
				}
				sess.preOutcomes = append(sess.preOutcomes, failedOutcome(src, err))
			}

		default:
			sess.preOutcomes = append(sess.preOutcomes, models.ItemOutcome{
				Source: src,
				State:  models.ItemSkipped,
				Err:    fmt.Errorf("%s entries are not transferred", entry.Kind),
			})
		}
	}

	sess.outcomes = make([]models.ItemOutcome, len(sess.items))
	return nil
}

// checkDestSpace fails the whole batch up front when the destination
// filesystem cannot hold it. Providers that cannot answer (or answer
// "unknown") pass; the batch then fails naturally on write.
func (e *Engine) checkDestSpace(ctx context.Context, sess *session, dstProv vfs.Provider) error {
	checker, ok := dstProv.(vfs.SpaceChecker)
	if !ok || sess.batchTotal == 0 {
		return nil
	}
	avail, err := checker.FreeSpace(ctx, sess.spec.Dest.Path)
	if err != nil || avail == 0 {
		return nil
	}
	if avail < sess.batchTotal {
		return &diskspace.InsufficientSpaceError{
			Path:      sess.spec.Dest.Path,
			Required:  sess.batchTotal,
			Available: avail,
		}
	}
	return nil
}

// createDestDirs replays every expanded source directory at the destination,
// parents first, so directories holding no files still arrive. A root whose
// directories all exist afterwards is marked ready for move cleanup.
func (e *Engine) createDestDirs(ctx context.Context, sess *session, dstProv vfs.Provider) {
	for i, dirs := range sess.destDirs {
		ready := len(dirs) > 0
		for _, dir := range dirs {
			sess.markDirCreated(dir)
			if err := dstProv.Mkdir(ctx, dir, true); err != nil && !errors.Is(err, vfs.ErrNameCollision) {
				e.log.Warn().Str("path", dir).Err(err).Msg("destination directory not created")
				ready = false
			}
		}
		sess.rootReady[i] = ready
	}
}

// itemWorkers picks intra-request parallelism: the most constrained provider
// wins, so a protocol-serialized session keeps source-list order.
func (e *Engine) itemWorkers(sess *session, dstProv vfs.Provider) int {
	workers := dstProv.Concurrency()
	for _, src := range sess.spec.Sources {
		if p, err := e.reg.Get(src.Handle); err == nil {
			if c := p.Concurrency(); c < workers {
				workers = c
			}
		}
	}
	if workers > maxItemWorkers {
		workers = maxItemWorkers
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// executeItems runs the batch. With one worker, items run in source-list
// order; with more, completion order is unspecified but each item's own
// progress events stay strictly ordered.
func (e *Engine) executeItems(ctx context.Context, sess *session, workers int) {
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	for idx := range sess.items {
		if ctx.Err() != nil || sess.aborted.Load() {
			e.cancelRemaining(sess, idx)
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			e.cancelRemaining(sess, idx)
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			if ctx.Err() != nil || sess.aborted.Load() {
				sess.setOutcome(i, cancelledOutcome(sess.items[i]))
				return
			}

			outcome := e.executeItem(ctx, sess, sess.items[i])
			sess.setOutcome(i, outcome)
			e.publishItem(sess.spec.RequestID, outcome)

			if outcome.State == models.ItemFailed && sess.spec.Options.AbortOnError {
				sess.aborted.Store(true)
			}
		}(idx)
	}

	wg.Wait()

	// Anything never started gets a cancelled outcome.
	for i := range sess.items {
		sess.mu.Lock()
		missing := sess.outcomes[i].State == ""
		sess.mu.Unlock()
		if missing {
			sess.setOutcome(i, cancelledOutcome(sess.items[i]))
		}
	}
}

func (e *Engine) cancelRemaining(sess *session, from int) {
	for i := from; i < len(sess.items); i++ {
		sess.mu.Lock()
		missing := sess.outcomes[i].State == ""
		sess.mu.Unlock()
		if missing {
			sess.setOutcome(i, cancelledOutcome(sess.items[i]))
		}
	}
}

// executeItem transfers a single file: destination directory, collision
// policy, chunked stream with bounded retries, then delete-of-source for
// moves.
func (e *Engine) executeItem(ctx context.Context, sess *session, it item) models.ItemOutcome {
	srcProv, err := e.reg.Get(it.src.Handle)
	if err != nil {
		return failedOutcome(it.src, err)
	}
	dstProv, err := e.reg.Get(it.dst.Handle)
	if err != nil {
		return failedOutcome(it.src, err)
	}

	dstR := pathid.ForSeparator(dstProv.Separator())
	dstDir := dstR.Dir(it.dst.Path)

	// Destination directories are created lazily, right before the first
	// file that needs them. Existing directories are not an error.
	if sess.markDirCreated(dstDir) {
		if err := dstProv.Mkdir(ctx, dstDir, true); err != nil && !errors.Is(err, vfs.ErrNameCollision) {
			return failedOutcome(it.src, err)
		}
	}

	dstPath, proceed, outcome := e.resolveCollision(ctx, sess, dstProv, dstR, it)
	if !proceed {
		return outcome
	}
	dst := vfs.Location{Handle: it.dst.Handle, Path: dstPath}

	var written int64
	err = retry.Do(ctx, e.retryCfg, func() error {
		n, copyErr := e.copyFile(ctx, sess, srcProv, dstProv, it, dstPath)
		if copyErr != nil {
			// No partially-written destination survives a failed or
			// cancelled attempt.
			sess.batchSoFar.Add(-n)
			if rmErr := dstProv.Remove(context.WithoutCancel(ctx), dstPath); rmErr != nil && !errors.Is(rmErr, vfs.ErrNotFound) {
				e.log.Warn().Str("path", dstPath).Err(rmErr).Msg("could not remove partial destination")
			}
			return copyErr
		}
		written = n
		return nil
	})
	if err != nil {
		if vfs.Classify(err) == vfs.ClassCancelled {
			return models.ItemOutcome{Source: it.src, Dest: dst, State: models.ItemCancelled, Err: vfs.ErrCancelled}
		}
		return models.ItemOutcome{Source: it.src, Dest: dst, State: models.ItemFailed, Err: err}
	}

	if sess.spec.Options.PreserveTimestamps {
		if err := dstProv.SetModTime(ctx, dstPath, it.entry.ModTime); err != nil {
			e.log.Warn().Str("path", dstPath).Err(err).Msg("could not preserve timestamp")
		}
	}

	if sess.spec.Move {
		// Delete-of-source only after the destination write is confirmed
		// complete; a failure here leaves the source intact.
		if err := e.confirmDestination(ctx, dstProv, dstPath, it.entry.Size); err != nil {
			return models.ItemOutcome{Source: it.src, Dest: dst, State: models.ItemFailed, Bytes: written, Err: err}
		}
		if err := srcProv.Remove(ctx, it.src.Path); err != nil {
			return models.ItemOutcome{Source: it.src, Dest: dst, State: models.ItemFailed, Bytes: written,
				Err: fmt.Errorf("copied but source not removed: %w", err)}
		}
	}

	return models.ItemOutcome{Source: it.src, Dest: dst, State: models.ItemSucceeded, Bytes: written}
}

// resolveCollision applies the overwrite policy when the destination name is
// taken. It returns the final destination path and whether to proceed; when
// not proceeding, the third return value is the item's outcome.
func (e *Engine) resolveCollision(ctx context.Context, sess *session, dstProv vfs.Provider, dstR pathid.Resolver, it item) (string, bool, models.ItemOutcome) {
	existing, err := dstProv.Stat(ctx, it.dst.Path)
	if err != nil {
		if errors.Is(err, vfs.ErrNotFound) {
			return it.dst.Path, true, models.ItemOutcome{}
		}
		return "", false, failedOutcome(it.src, err)
	}

	policy := sess.spec.Options.Overwrite
	if policy == "" {
		policy = models.OverwriteSkip
	}

	var action events.PromptAction
	switch policy {
	case models.OverwriteSkip:
		action = events.PromptSkip
	case models.OverwriteReplace:
		action = events.PromptReplace
	case models.OverwriteRename:
		action = events.PromptRename
	case models.OverwritePrompt:
		sess.promptMu.Lock()
		decision, ok := sess.stickyDecision()
		if !ok {
			var err error
			decision, err = e.bus.RequestDecision(ctx, sess.spec.RequestID, it.src.Path, existing)
			if err != nil {
				sess.promptMu.Unlock()
				return "", false, cancelledOutcome(it)
			}
			if decision.ApplyToAll {
				sess.setSticky(decision)
			}
		}
		sess.promptMu.Unlock()
		action = decision.Action
	}

	switch action {
	case events.PromptReplace:
		return it.dst.Path, true, models.ItemOutcome{}
	case events.PromptRename:
		dstDir := dstR.Dir(it.dst.Path)
		name, err := pathid.UniqueName(dstR.Base(it.dst.Path), func(candidate string) (bool, error) {
			_, statErr := dstProv.Stat(ctx, dstR.Join(dstDir, candidate))
			if statErr == nil {
				return true, nil
			}
			if errors.Is(statErr, vfs.ErrNotFound) {
				return false, nil
			}
			return false, statErr
		})
		if err != nil {
			return "", false, failedOutcome(it.src, err)
		}
		return dstR.Join(dstDir, name), true, models.ItemOutcome{}
	default:
		return "", false, models.ItemOutcome{
			Source: it.src,
			Dest:   it.dst,
			State:  models.ItemSkipped,
			Err:    vfs.ErrNameCollision,
		}
	}
}

// copyFile streams one file in fixed-size chunks, emitting a progress event
// after every chunk and polling cancellation between chunks. It returns the
// bytes written (also on error, so the caller can rewind batch counters).
func (e *Engine) copyFile(ctx context.Context, sess *session, srcProv, dstProv vfs.Provider, it item, dstPath string) (int64, error) {
	src, err := srcProv.OpenRead(ctx, it.src.Path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()

	dst, err := dstProv.OpenWrite(ctx, dstPath, vfs.WriteTruncate)
	if err != nil {
		return 0, err
	}
	closed := false
	defer func() {
		if !closed {
			_ = dst.Close()
		}
	}()

	buf := buffers.GetChunk()
	defer buffers.PutChunk(buf)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("%w: %w", vfs.ErrCancelled, err)
		}

		n, readErr := src.Read(*buf)
		if n > 0 {
			if e.limiter != nil {
				if err := e.limiter.WaitN(ctx, n); err != nil {
					return written, fmt.Errorf("%w: %w", vfs.ErrCancelled, err)
				}
			}
			if _, writeErr := dst.Write((*buf)[:n]); writeErr != nil {
				return written, writeErr
			}
			written += n64(n)
			sess.batchSoFar.Add(n64(n))
			e.publishProgress(sess, it, written)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, readErr
		}
	}

	closed = true
	if err := dst.Close(); err != nil {
		return written, err
	}
	return written, nil
}

// confirmDestination verifies the destination write is durable before a move
// deletes its source.
func (e *Engine) confirmDestination(ctx context.Context, dstProv vfs.Provider, path string, wantSize int64) error {
	entry, err := dstProv.Stat(ctx, path)
	if err != nil {
		return fmt.Errorf("confirm destination: %w", err)
	}
	if entry.Size != wantSize {
		return fmt.Errorf("confirm destination %s: size %d, want %d", path, entry.Size, wantSize)
	}
	return nil
}

// cleanupMovedSources removes source directories whose entire contents were
// moved, deepest first. Leftover directories are logged, never failures; the
// files themselves are already safe at the destination.
func (e *Engine) cleanupMovedSources(ctx context.Context, sess *session) {
	for rootIdx, dirs := range sess.sourceDirs {
		if len(dirs) == 0 || !sess.rootSucceeded(rootIdx) {
			continue
		}
		prov, err := e.reg.Get(dirs[0].Handle)
		if err != nil {
			continue
		}
		for i := len(dirs) - 1; i >= 0; i-- {
			if err := prov.Remove(ctx, dirs[i].Path); err != nil {
				e.log.Warn().Str("path", dirs[i].Path).Err(err).Msg("moved directory not removed at source")
			}
		}
	}
}

func (e *Engine) publishProgress(sess *session, it item, written int64) {
	e.bus.Publish(&events.ProgressEvent{
		BaseEvent:  events.BaseEvent{EventType: events.EventProgress, Time: time.Now()},
		RequestID:  sess.spec.RequestID,
		ItemPath:   it.src.Path,
		BytesSoFar: written,
		BytesTotal: it.entry.Size,
		BatchSoFar: sess.batchSoFar.Load(),
		BatchTotal: sess.batchTotal,
	})
}

func (e *Engine) publishItem(requestID string, outcome models.ItemOutcome) {
	e.bus.Publish(&events.ItemEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventItem, Time: time.Now()},
		RequestID: requestID,
		Outcome:   outcome,
	})
}

func failedOutcome(src vfs.Location, err error) models.ItemOutcome {
	return models.ItemOutcome{Source: src, State: models.ItemFailed, Err: err}
}

func cancelledOutcome(it item) models.ItemOutcome {
	return models.ItemOutcome{Source: it.src, Dest: it.dst, State: models.ItemCancelled, Err: vfs.ErrCancelled}
}

func stateForError(err error) SessionState {
	if errors.Is(err, context.Canceled) {
		return SessionCancelled
	}
	return SessionFailed
}

func n64(n int) int64 { return int64(n) }
