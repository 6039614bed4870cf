package vfs

import (
	"context"
	"io"
	"time"
)

// fakeProvider is the minimal Provider used by registry tests.
type fakeProvider struct {
	handle Handle
	closed bool
}

func (f *fakeProvider) Handle() Handle    { return f.handle }
func (f *fakeProvider) Separator() string { return "/" }
func (f *fakeProvider) Concurrency() int  { return 1 }

func (f *fakeProvider) List(context.Context, string) ([]Entry, error) { return nil, nil }
func (f *fakeProvider) Stat(context.Context, string) (Entry, error)  { return Entry{}, ErrNotFound }
func (f *fakeProvider) OpenRead(context.Context, string) (io.ReadCloser, error) {
	return nil, ErrNotFound
}
func (f *fakeProvider) OpenWrite(context.Context, string, WriteMode) (io.WriteCloser, error) {
	return nil, ErrNotFound
}
func (f *fakeProvider) Remove(context.Context, string) error         { return nil }
func (f *fakeProvider) Rename(context.Context, string, string) error { return nil }
func (f *fakeProvider) Mkdir(context.Context, string, bool) error    { return nil }
func (f *fakeProvider) SetModTime(context.Context, string, time.Time) error {
	return nil
}

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}
