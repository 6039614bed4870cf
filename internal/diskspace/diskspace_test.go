package diskspace

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestFree_ExistingDirectory(t *testing.T) {
	avail, err := Free(t.TempDir())
	if err != nil {
		t.Fatalf("Free failed: %v", err)
	}
	if avail <= 0 {
		t.Errorf("Free = %d, expected positive space in a temp directory", avail)
	}
}

func TestFree_NonExistentPathUsesAncestor(t *testing.T) {
	dir := t.TempDir()
	avail, err := Free(filepath.Join(dir, "not", "created", "yet"))
	if err != nil {
		t.Fatalf("Free failed: %v", err)
	}
	if avail <= 0 {
		t.Errorf("Free = %d, expected the ancestor's space", avail)
	}
}

func TestCheck_SufficientSpace(t *testing.T) {
	if err := Check(t.TempDir(), 1); err != nil {
		t.Errorf("Check(1 byte) = %v", err)
	}
}

func TestCheck_InsufficientSpace(t *testing.T) {
	// No filesystem has an exbibyte free.
	err := Check(t.TempDir(), 1<<60)
	var insufficient *InsufficientSpaceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientSpaceError, got %v", err)
	}
	if insufficient.Required != 1<<60 || insufficient.Available <= 0 {
		t.Errorf("Error fields: %+v", insufficient)
	}
}
