package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a stand-in media file of the requested size so size
// estimates and storage checks have something real to measure. A size <= 0
// produces a one byte file.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	payload := bytes.Repeat([]byte{0x5f}, 64<<10)
	for written := int64(0); written < size; {
		chunk := int64(len(payload))
		if remaining := size - written; remaining < chunk {
			chunk = remaining
		}
		n, err := f.Write(payload[:chunk])
		if err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		written += int64(n)
	}
}
