package buffers

import "testing"

func TestGetChunk_Size(t *testing.T) {
	buf := GetChunk()
	defer PutChunk(buf)

	if len(*buf) != ChunkSize {
		t.Errorf("Expected %d-byte chunk, got %d", ChunkSize, len(*buf))
	}
}

func TestPutChunk_Reuse(t *testing.T) {
	buf := GetChunk()
	(*buf)[0] = 0xAB
	PutChunk(buf)

	again := GetChunk()
	defer PutChunk(again)
	if len(*again) != ChunkSize {
		t.Errorf("Recycled chunk has wrong size %d", len(*again))
	}
}
