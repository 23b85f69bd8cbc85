package printcomp

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// verifyPageCount re-reads a composed document and confirms it carries the
// expected number of pages before the bytes leave the composer.
func verifyPageCount(pdfBytes []byte, want int) error {
	got, err := api.PageCount(bytes.NewReader(pdfBytes), nil)
	if err != nil {
		return fmt.Errorf("verifying composed document: %w", err)
	}
	if got != want {
		return fmt.Errorf("composed document has %d pages, want %d", got, want)
	}
	return nil
}
