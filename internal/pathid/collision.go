package pathid

import (
	"fmt"
)

// ExistsFunc reports whether a candidate name is already taken in the
// destination directory.
type ExistsFunc func(name string) (bool, error)

// maxSuffixAttempts bounds the rename search so a pathological destination
// cannot loop forever.
const maxSuffixAttempts = 10000

// UniqueName resolves a name collision by inserting a numeric suffix before
// the extension: "output.zip" becomes "output (1).zip", then "output (2).zip"
// and so on, returning the first candidate the destination does not contain.
// The original name is returned unchanged when it is free.
func UniqueName(name string, exists ExistsFunc) (string, error) {
	taken, err := exists(name)
	if err != nil {
		return "", err
	}
	if !taken {
		return name, nil
	}

	stem, ext := SplitExt(name)
	for i := 1; i <= maxSuffixAttempts; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %q after %d attempts", name, maxSuffixAttempts)
}
