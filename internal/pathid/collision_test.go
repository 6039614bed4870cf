package pathid

import (
	"errors"
	"testing"
)

func existsSet(taken ...string) ExistsFunc {
	set := make(map[string]bool, len(taken))
	for _, name := range taken {
		set[name] = true
	}
	return func(name string) (bool, error) {
		return set[name], nil
	}
}

func TestUniqueName_FreeNameUnchanged(t *testing.T) {
	got, err := UniqueName("output.zip", existsSet())
	if err != nil {
		t.Fatalf("UniqueName failed: %v", err)
	}
	if got != "output.zip" {
		t.Errorf("Expected unchanged name, got %q", got)
	}
}

func TestUniqueName_SuffixBeforeExtension(t *testing.T) {
	got, err := UniqueName("output.zip", existsSet("output.zip"))
	if err != nil {
		t.Fatalf("UniqueName failed: %v", err)
	}
	if got != "output (1).zip" {
		t.Errorf("Expected 'output (1).zip', got %q", got)
	}
}

func TestUniqueName_Increments(t *testing.T) {
	got, err := UniqueName("output.zip", existsSet("output.zip", "output (1).zip", "output (2).zip"))
	if err != nil {
		t.Fatalf("UniqueName failed: %v", err)
	}
	if got != "output (3).zip" {
		t.Errorf("Expected 'output (3).zip', got %q", got)
	}
}

func TestUniqueName_NoExtension(t *testing.T) {
	got, err := UniqueName("README", existsSet("README"))
	if err != nil {
		t.Fatalf("UniqueName failed: %v", err)
	}
	if got != "README (1)" {
		t.Errorf("Expected 'README (1)', got %q", got)
	}
}

func TestUniqueName_PropagatesExistsError(t *testing.T) {
	want := errors.New("stat failed")
	_, err := UniqueName("output.zip", func(string) (bool, error) { return false, want })
	if !errors.Is(err, want) {
		t.Errorf("Expected stat error, got %v", err)
	}
}

func TestUniqueName_Exhaustion(t *testing.T) {
	_, err := UniqueName("f", func(string) (bool, error) { return true, nil })
	if err == nil {
		t.Fatal("Expected error when every candidate is taken")
	}
}
