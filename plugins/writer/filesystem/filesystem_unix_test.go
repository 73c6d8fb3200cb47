//go:build !windows

package filesystem

import (
	"errors"
	"testing"

	"telematch/pkg/contract"
)

// TestMapPathInvalidUnix 非扁平模式下的路径校验
func TestMapPathInvalidUnix(t *testing.T) {
	flat := false
	w, _ := New(&Options{OutputDir: t.TempDir(), Flat: &flat})
	for _, id := range []string{"/abs", "..", ".", "../x"} {
		if _, err := w.mapPath(contract.ArtifactID(id)); !errors.Is(err, contract.ErrPathInvalid) {
			t.Fatalf("id %s expect invalid", id)
		}
	}
	flat = true
	w, _ = New(&Options{OutputDir: t.TempDir(), Flat: &flat})
	if _, err := w.mapPath("/"); !errors.Is(err, contract.ErrPathInvalid) {
		t.Fatalf("flat root should be invalid")
	}
}
