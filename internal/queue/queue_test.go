package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paneferry/paneferry/internal/engine"
	"github.com/paneferry/paneferry/internal/events"
	"github.com/paneferry/paneferry/internal/models"
	"github.com/paneferry/paneferry/internal/vfs"
	"github.com/paneferry/paneferry/internal/vfs/local"
)

// serialProvider wraps the local provider under its own handle, declares a
// single-operation cap and records whether two operations ever overlapped.
type serialProvider struct {
	*local.Provider
	handle    vfs.Handle
	inFlight  atomic.Int32
	overlap   atomic.Bool
	listDelay time.Duration
}

func (s *serialProvider) Handle() vfs.Handle { return s.handle }
func (s *serialProvider) Concurrency() int   { return 1 }

func (s *serialProvider) List(ctx context.Context, path string) ([]vfs.Entry, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)
	if s.listDelay > 0 {
		time.Sleep(s.listDelay)
	}
	return s.Provider.List(ctx, path)
}

type fixture struct {
	reg    *vfs.Registry
	bus    *events.EventBus
	q      *Queue
	serial *serialProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := vfs.NewRegistry()
	reg.Register(local.New())
	serial := &serialProvider{Provider: local.New(), handle: "serial-remote"}
	reg.Register(serial)

	bus := events.NewEventBus(4096)
	t.Cleanup(bus.Close)
	return &fixture{reg: reg, bus: bus, q: New(reg, engine.New(reg, bus), bus), serial: serial}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func loc(path string) vfs.Location {
	return vfs.Location{Handle: vfs.LocalHandle, Path: path}
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []models.OperationRequest{
		{Kind: models.OpCopy, Sources: []vfs.Location{loc("/a")}},     // no destination
		{Kind: models.OpCopy, Destination: &vfs.Location{}},           // no sources
		{Kind: models.OpMkdir},                                        // no destination
		{Kind: "defragment", Sources: []vfs.Location{loc("/a")}},      // unknown kind
		{Kind: models.OpRename, Sources: []vfs.Location{loc("/a")}},   // no destination
		{Kind: models.OpList, Sources: []vfs.Location{{Handle: "gone", Path: "/"}}}, // unknown handle
	}
	for i, req := range cases {
		if _, err := f.q.Submit(req); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestSubmit_CopyLifecycle(t *testing.T) {
	f := newFixture(t)
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "f.txt"), "payload")

	results := f.bus.Subscribe(events.EventResult)

	dest := loc(dst)
	id, err := f.q.Submit(models.OperationRequest{
		Kind:        models.OpCopy,
		Sources:     []vfs.Location{loc(filepath.Join(src, "f.txt"))},
		Destination: &dest,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	res, err := f.q.Wait(id)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if res.RequestID != id || res.Succeeded() != 1 {
		t.Fatalf("Unexpected result %+v", res)
	}

	status, got, err := f.q.Status(id)
	if err != nil || status != models.StatusTerminal || got != res {
		t.Errorf("Status after completion: %v %v %v", status, got, err)
	}

	// Exactly one result event per request.
	select {
	case ev := <-results:
		re := ev.(*events.ResultEvent)
		if re.Result.RequestID != id {
			t.Errorf("Result event for wrong request %s", re.Result.RequestID)
		}
	case <-time.After(time.Second):
		t.Fatal("No result event published")
	}
	select {
	case ev := <-results:
		t.Fatalf("Second result event published: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStatus_UnknownRequest(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.q.Status("nope"); !errors.Is(err, ErrUnknownRequest) {
		t.Errorf("Expected ErrUnknownRequest, got %v", err)
	}
	if err := f.q.Cancel("nope"); !errors.Is(err, ErrUnknownRequest) {
		t.Errorf("Expected ErrUnknownRequest, got %v", err)
	}
}

func TestCancel_TerminalIsNoOp(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	id, err := f.q.Submit(models.OperationRequest{
		Kind:    models.OpList,
		Sources: []vfs.Location{loc(dir)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.q.Wait(id); err != nil {
		t.Fatal(err)
	}

	if err := f.q.Cancel(id); err != nil {
		t.Errorf("Cancel after completion must be a no-op, got %v", err)
	}
	status, res, _ := f.q.Status(id)
	if status != models.StatusTerminal || res.Err != nil {
		t.Errorf("Result disturbed by late cancel: %v %+v", status, res)
	}
}

func TestList_ReturnsEntries(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "visible.txt"), "v")
	writeFile(t, filepath.Join(dir, ".hidden"), "h")

	id, err := f.q.Submit(models.OperationRequest{
		Kind:    models.OpList,
		Sources: []vfs.Location{loc(dir)},
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.q.Wait(id)
	if err != nil || res.Err != nil {
		t.Fatalf("List failed: %v %v", err, res.Err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Name != "visible.txt" {
		t.Errorf("Entries = %+v", res.Entries)
	}
}

func TestConcurrencyCap_NoOverlapOnSameProvider(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "f.txt"), "x")
	f.serial.listDelay = 20 * time.Millisecond

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		id, err := f.q.Submit(models.OperationRequest{
			Kind:    models.OpList,
			Sources: []vfs.Location{{Handle: f.serial.handle, Path: dir}},
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		if _, err := f.q.Wait(id); err != nil {
			t.Fatal(err)
		}
	}

	if f.serial.overlap.Load() {
		t.Error("Two operations overlapped on a concurrency-1 provider")
	}
}

func TestDelete_File(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	writeFile(t, path, "x")

	id, err := f.q.Submit(models.OperationRequest{
		Kind:    models.OpDelete,
		Sources: []vfs.Location{loc(path)},
	})
	if err != nil {
		t.Fatal(err)
	}
	res, _ := f.q.Wait(id)
	if res.Succeeded() != 1 {
		t.Fatalf("Delete failed: %+v", res.Items)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("File survived delete")
	}
}

func TestDelete_DirectoryRequiresRecursive(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	tree := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(tree, "deep", "f.txt"), "x")

	id, err := f.q.Submit(models.OperationRequest{
		Kind:    models.OpDelete,
		Sources: []vfs.Location{loc(tree)},
	})
	if err != nil {
		t.Fatal(err)
	}
	res, _ := f.q.Wait(id)
	if res.Failed() != 1 {
		t.Fatalf("Non-recursive delete of a populated directory must fail: %+v", res.Items)
	}
	if _, err := os.Stat(tree); err != nil {
		t.Error("Directory must survive a failed delete")
	}

	id, err = f.q.Submit(models.OperationRequest{
		Kind:    models.OpDelete,
		Sources: []vfs.Location{loc(tree)},
		Options: models.Options{Recursive: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	res, _ = f.q.Wait(id)
	if res.Succeeded() != 1 {
		t.Fatalf("Recursive delete failed: %+v", res.Items)
	}
	if _, err := os.Stat(tree); !os.IsNotExist(err) {
		t.Error("Tree survived recursive delete")
	}
}

func TestRename_Basic(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "old.txt"), "x")

	dest := loc(filepath.Join(dir, "new.txt"))
	id, err := f.q.Submit(models.OperationRequest{
		Kind:        models.OpRename,
		Sources:     []vfs.Location{loc(filepath.Join(dir, "old.txt"))},
		Destination: &dest,
	})
	if err != nil {
		t.Fatal(err)
	}
	res, _ := f.q.Wait(id)
	if res.Succeeded() != 1 {
		t.Fatalf("Rename failed: %+v", res.Items)
	}
	if _, err := os.Stat(filepath.Join(dir, "new.txt")); err != nil {
		t.Error("Renamed file missing")
	}
}

func TestRename_CollisionWithSuffix(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "old.txt"), "renamed")
	writeFile(t, filepath.Join(dir, "taken.txt"), "existing")

	dest := loc(filepath.Join(dir, "taken.txt"))
	id, err := f.q.Submit(models.OperationRequest{
		Kind:        models.OpRename,
		Sources:     []vfs.Location{loc(filepath.Join(dir, "old.txt"))},
		Destination: &dest,
		Options:     models.Options{Overwrite: models.OverwriteRename},
	})
	if err != nil {
		t.Fatal(err)
	}
	res, _ := f.q.Wait(id)
	if res.Succeeded() != 1 {
		t.Fatalf("Rename failed: %+v", res.Items)
	}
	if res.Items[0].Dest.Path != filepath.Join(dir, "taken (1).txt") {
		t.Errorf("Renamed to %s", res.Items[0].Dest.Path)
	}
	data, err := os.ReadFile(filepath.Join(dir, "taken.txt"))
	if err != nil || string(data) != "existing" {
		t.Error("Existing file was disturbed")
	}
}

func TestRename_CollisionSkip(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "old.txt"), "x")
	writeFile(t, filepath.Join(dir, "taken.txt"), "existing")

	dest := loc(filepath.Join(dir, "taken.txt"))
	id, err := f.q.Submit(models.OperationRequest{
		Kind:        models.OpRename,
		Sources:     []vfs.Location{loc(filepath.Join(dir, "old.txt"))},
		Destination: &dest,
		Options:     models.Options{Overwrite: models.OverwriteSkip},
	})
	if err != nil {
		t.Fatal(err)
	}
	res, _ := f.q.Wait(id)
	if res.Skipped() != 1 {
		t.Fatalf("Expected skip, got %+v", res.Items)
	}
	if _, err := os.Stat(filepath.Join(dir, "old.txt")); err != nil {
		t.Error("Source renamed despite skip")
	}
}

func TestMkdir(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	dest := loc(filepath.Join(dir, "a", "b"))
	id, err := f.q.Submit(models.OperationRequest{
		Kind:        models.OpMkdir,
		Destination: &dest,
		Options:     models.Options{Recursive: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	res, _ := f.q.Wait(id)
	if res.Succeeded() != 1 {
		t.Fatalf("Mkdir failed: %+v", res.Items)
	}
	info, err := os.Stat(filepath.Join(dir, "a", "b"))
	if err != nil || !info.IsDir() {
		t.Error("Directory not created")
	}
}
