package queue

import (
	"context"
	"errors"
	"time"

	"github.com/paneferry/paneferry/internal/events"
	"github.com/paneferry/paneferry/internal/lister"
	"github.com/paneferry/paneferry/internal/models"
	"github.com/paneferry/paneferry/internal/pathid"
	"github.com/paneferry/paneferry/internal/vfs"
)

// runList resolves each source directory into a single combined listing.
func (q *Queue) runList(t *tracked) *models.OperationResult {
	res := &models.OperationResult{RequestID: t.id, Kind: models.OpList}
	opts := lister.Options{IncludeHidden: t.req.Options.IncludeHidden}

	for _, src := range t.req.Sources {
		entries, err := q.lst.List(t.ctx, src, opts)
		if err != nil {
			res.Items = append(res.Items, itemFailed(src, err))
			if res.Err == nil {
				res.Err = err
			}
			if t.req.Options.AbortOnError {
				break
			}
			continue
		}
		res.Entries = append(res.Entries, entries...)
		res.Items = append(res.Items, models.ItemOutcome{Source: src, State: models.ItemSucceeded})
	}
	return res
}

// runDelete removes each source. Directories require Recursive; a recursive
// delete removes children before their parent so a remote provider with no
// rmtree primitive still ends clean.
func (q *Queue) runDelete(t *tracked) *models.OperationResult {
	res := &models.OperationResult{RequestID: t.id, Kind: models.OpDelete}

	for _, src := range t.req.Sources {
		if err := t.ctx.Err(); err != nil {
			res.Items = append(res.Items, models.ItemOutcome{Source: src, State: models.ItemCancelled, Err: vfs.ErrCancelled})
			continue
		}
		err := q.deleteOne(t.ctx, src, t.req.Options.Recursive)
		switch {
		case err == nil:
			res.Items = append(res.Items, models.ItemOutcome{Source: src, State: models.ItemSucceeded})
		case errors.Is(err, context.Canceled) || errors.Is(err, vfs.ErrCancelled):
			res.Items = append(res.Items, models.ItemOutcome{Source: src, State: models.ItemCancelled, Err: vfs.ErrCancelled})
		default:
			res.Items = append(res.Items, itemFailed(src, err))
			if res.Err == nil {
				res.Err = err
			}
			if t.req.Options.AbortOnError {
				return res
			}
		}
	}
	return res
}

func (q *Queue) deleteOne(ctx context.Context, src vfs.Location, recursive bool) error {
	p, err := q.reg.Get(src.Handle)
	if err != nil {
		return err
	}
	entry, err := p.Stat(ctx, src.Path)
	if err != nil {
		return err
	}
	if entry.Kind != vfs.KindDir || !recursive {
		return p.Remove(ctx, src.Path)
	}

	// Walk is pre-order and visits the root first, so reversing the visit
	// order yields children strictly before their parents, root last.
	var paths []string
	err = q.lst.Walk(ctx, src, lister.Options{IncludeHidden: true}, func(path string, e vfs.Entry) error {
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return err
	}
	for i := len(paths) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Remove(ctx, paths[i]); err != nil {
			return err
		}
	}
	return nil
}

// runRename renames a single entry within one provider, honoring the
// request's overwrite policy when the target name is already taken.
func (q *Queue) runRename(t *tracked) *models.OperationResult {
	res := &models.OperationResult{RequestID: t.id, Kind: models.OpRename}
	src := t.req.Sources[0]
	dst := *t.req.Destination

	p, err := q.reg.Get(src.Handle)
	if err != nil {
		res.Items = append(res.Items, itemFailed(src, err))
		res.Err = err
		return res
	}
	pid := pathid.ForSeparator(p.Separator())

	if _, statErr := p.Stat(t.ctx, dst.Path); statErr == nil {
		switch t.req.Options.Overwrite {
		case models.OverwriteSkip:
			res.Items = append(res.Items, models.ItemOutcome{Source: src, Dest: dst, State: models.ItemSkipped, Err: vfs.ErrNameCollision})
			return res
		case models.OverwriteReplace:
			if err := p.Remove(t.ctx, dst.Path); err != nil {
				res.Items = append(res.Items, itemFailed(src, err))
				res.Err = err
				return res
			}
		case models.OverwriteRename, models.OverwritePrompt:
			dir := pid.Dir(dst.Path)
			unique, uerr := pathid.UniqueName(pid.Base(dst.Path), func(name string) (bool, error) {
				_, serr := p.Stat(t.ctx, pid.Join(dir, name))
				if serr == nil {
					return true, nil
				}
				if errors.Is(serr, vfs.ErrNotFound) {
					return false, nil
				}
				return false, serr
			})
			if uerr != nil {
				res.Items = append(res.Items, itemFailed(src, uerr))
				res.Err = uerr
				return res
			}
			dst.Path = pid.Join(dir, unique)
		}
	} else if !errors.Is(statErr, vfs.ErrNotFound) {
		res.Items = append(res.Items, itemFailed(src, statErr))
		res.Err = statErr
		return res
	}

	if err := p.Rename(t.ctx, src.Path, dst.Path); err != nil {
		res.Items = append(res.Items, itemFailed(src, err))
		res.Err = err
		return res
	}
	res.Items = append(res.Items, models.ItemOutcome{Source: src, Dest: dst, State: models.ItemSucceeded})
	q.publishItem(t.id, res.Items[0])
	return res
}

// runMkdir creates the destination directory, with parents when Recursive.
func (q *Queue) runMkdir(t *tracked) *models.OperationResult {
	res := &models.OperationResult{RequestID: t.id, Kind: models.OpMkdir}
	dst := *t.req.Destination

	p, err := q.reg.Get(dst.Handle)
	if err == nil {
		err = p.Mkdir(t.ctx, dst.Path, t.req.Options.Recursive)
	}
	if err != nil {
		res.Items = append(res.Items, itemFailed(dst, err))
		res.Err = err
		return res
	}
	res.Items = append(res.Items, models.ItemOutcome{Source: dst, State: models.ItemSucceeded})
	return res
}

func (q *Queue) publishItem(requestID string, out models.ItemOutcome) {
	q.bus.Publish(&events.ItemEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventItem, Time: time.Now()},
		RequestID: requestID,
		Outcome:   out,
	})
}

func itemFailed(src vfs.Location, err error) models.ItemOutcome {
	return models.ItemOutcome{Source: src, State: models.ItemFailed, Err: err}
}
