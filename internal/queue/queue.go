// Package queue schedules operation requests against one or more providers.
// Non-transfer requests execute directly on a worker; copy and move are
// handed to the transfer engine. A per-provider concurrency cap prevents a
// protocol-serialized remote session from being overloaded with interleaved
// messages, while requests targeting independent providers run fully in
// parallel.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/paneferry/paneferry/internal/engine"
	"github.com/paneferry/paneferry/internal/events"
	"github.com/paneferry/paneferry/internal/lister"
	"github.com/paneferry/paneferry/internal/logging"
	"github.com/paneferry/paneferry/internal/models"
	"github.com/paneferry/paneferry/internal/vfs"
)

// ErrUnknownRequest is returned for IDs the queue has never seen.
var ErrUnknownRequest = errors.New("unknown request id")

// tracked is one submitted request and its lifecycle.
type tracked struct {
	id     string
	req    models.OperationRequest
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status models.RequestStatus
	result *models.OperationResult
}

func (t *tracked) setResult(res *models.OperationResult) {
	t.mu.Lock()
	t.status = models.StatusTerminal
	t.result = res
	t.mu.Unlock()
	close(t.done)
}

// Queue accepts, schedules and tracks operation requests.
type Queue struct {
	reg *vfs.Registry
	eng *engine.Engine
	lst *lister.Lister
	bus *events.EventBus
	log *logging.Logger

	mu       sync.Mutex
	requests map[string]*tracked
	sems     map[vfs.Handle]*semaphore.Weighted
}

// New creates a queue over the given registry, engine and bus.
func New(reg *vfs.Registry, eng *engine.Engine, bus *events.EventBus) *Queue {
	return &Queue{
		reg:      reg,
		eng:      eng,
		lst:      lister.New(reg),
		bus:      bus,
		log:      logging.NewLogger("queue"),
		requests: make(map[string]*tracked),
		sems:     make(map[vfs.Handle]*semaphore.Weighted),
	}
}

// Submit validates and schedules a request, returning its ID immediately.
// The caller never blocks on completion; results and progress arrive on the
// event bus, and Wait is available for synchronous callers.
func (q *Queue) Submit(req models.OperationRequest) (string, error) {
	if err := q.validate(req); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &tracked{
		id:     uuid.New().String(),
		req:    req,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		status: models.StatusQueued,
	}

	q.mu.Lock()
	q.requests[t.id] = t
	q.mu.Unlock()

	go q.run(t)
	return t.id, nil
}

// Cancel requests cooperative cancellation. Cancelling a request that
// already reached a terminal state is a no-op; sibling requests are never
// affected.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	t, ok := q.requests[id]
	q.mu.Unlock()
	if !ok {
		return ErrUnknownRequest
	}
	t.cancel()
	return nil
}

// Status reports where a request currently is; the result is non-nil only in
// the terminal state.
func (q *Queue) Status(id string) (models.RequestStatus, *models.OperationResult, error) {
	q.mu.Lock()
	t, ok := q.requests[id]
	q.mu.Unlock()
	if !ok {
		return "", nil, ErrUnknownRequest
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.result, nil
}

// Wait blocks until the request reaches its terminal state and returns the
// single result.
func (q *Queue) Wait(id string) (*models.OperationResult, error) {
	q.mu.Lock()
	t, ok := q.requests[id]
	q.mu.Unlock()
	if !ok {
		return nil, ErrUnknownRequest
	}
	<-t.done

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, nil
}

func (q *Queue) validate(req models.OperationRequest) error {
	switch req.Kind {
	case models.OpList, models.OpDelete:
		if len(req.Sources) == 0 {
			return fmt.Errorf("%s: at least one source required", req.Kind)
		}
	case models.OpCopy, models.OpMove:
		if len(req.Sources) == 0 {
			return fmt.Errorf("%s: at least one source required", req.Kind)
		}
		if req.Destination == nil {
			return fmt.Errorf("%s: destination required", req.Kind)
		}
	case models.OpRename:
		if len(req.Sources) != 1 || req.Destination == nil {
			return errors.New("rename: exactly one source and a destination required")
		}
		if req.Sources[0].Handle != req.Destination.Handle {
			return errors.New("rename: source and destination must share a provider")
		}
	case models.OpMkdir:
		if req.Destination == nil {
			return errors.New("mkdir: destination required")
		}
	default:
		return fmt.Errorf("unknown operation kind %q", req.Kind)
	}

	for _, h := range involvedHandles(req) {
		if _, err := q.reg.Get(h); err != nil {
			return err
		}
	}
	return nil
}

// run executes one request end to end and finalizes exactly one result,
// even when a provider panics out through an error path.
func (q *Queue) run(t *tracked) {
	start := time.Now()

	// Acquire the cap of every involved provider, in stable order so two
	// requests touching the same pair of handles cannot deadlock.
	handles := involvedHandles(t.req)
	acquired := make([]*semaphore.Weighted, 0, len(handles))
	for _, h := range handles {
		sem := q.semFor(h)
		if err := sem.Acquire(t.ctx, 1); err != nil {
			q.release(acquired)
			q.finalize(t, &models.OperationResult{
				RequestID: t.id,
				Kind:      t.req.Kind,
				WallTime:  time.Since(start),
				Err:       vfs.ErrCancelled,
			})
			return
		}
		acquired = append(acquired, sem)
	}
	defer q.release(acquired)

	t.mu.Lock()
	t.status = models.StatusRunning
	t.mu.Unlock()

	var res *models.OperationResult
	switch t.req.Kind {
	case models.OpCopy, models.OpMove:
		res = q.eng.Run(t.ctx, engine.Spec{
			RequestID: t.id,
			Move:      t.req.Kind == models.OpMove,
			Sources:   t.req.Sources,
			Dest:      *t.req.Destination,
			Options:   t.req.Options,
		})
	case models.OpList:
		res = q.runList(t)
	case models.OpDelete:
		res = q.runDelete(t)
	case models.OpRename:
		res = q.runRename(t)
	case models.OpMkdir:
		res = q.runMkdir(t)
	}
	res.WallTime = time.Since(start)
	q.finalize(t, res)
}

func (q *Queue) finalize(t *tracked, res *models.OperationResult) {
	t.setResult(res)
	q.bus.Publish(&events.ResultEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventResult, Time: time.Now()},
		Result:    res,
	})
}

func (q *Queue) release(sems []*semaphore.Weighted) {
	for _, s := range sems {
		s.Release(1)
	}
}

// semFor returns the per-handle semaphore, creating it from the provider's
// declared concurrency on first use.
func (q *Queue) semFor(h vfs.Handle) *semaphore.Weighted {
	q.mu.Lock()
	defer q.mu.Unlock()

	if sem, ok := q.sems[h]; ok {
		return sem
	}
	weight := 1
	if p, err := q.reg.Get(h); err == nil {
		if c := p.Concurrency(); c > 0 {
			weight = c
		}
	}
	sem := semaphore.NewWeighted(int64(weight))
	q.sems[h] = sem
	return sem
}

func involvedHandles(req models.OperationRequest) []vfs.Handle {
	seen := make(map[vfs.Handle]bool)
	for _, s := range req.Sources {
		seen[s.Handle] = true
	}
	if req.Destination != nil {
		seen[req.Destination.Handle] = true
	}
	handles := make([]vfs.Handle, 0, len(seen))
	for h := range seen {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}
