package extractor

import (
	"bytes"
	"fmt"

	pdflib "github.com/ledongthuc/pdf"
)

// fallbackReader wraps the pure-Go PDF reader. It serves two roles: plain
// text for pages MuPDF cannot read, and enumeration of image XObjects in
// each page's resource dictionary so only pages with imagery get rasterized.
type fallbackReader struct {
	reader *pdflib.Reader
}

func newFallbackReader(pdfBytes []byte) (*fallbackReader, error) {
	r, err := pdflib.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return nil, err
	}
	return &fallbackReader{reader: r}, nil
}

// pageText extracts plain text for a zero-based page index.
func (f *fallbackReader) pageText(index int) (string, error) {
	if index < 0 || index >= f.reader.NumPage() {
		return "", fmt.Errorf("page %d out of range", index)
	}
	page := f.reader.Page(index + 1) // 1-based
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is null", index)
	}
	return page.GetPlainText(nil)
}

// imageCounts returns the number of image XObjects per zero-based page
// index. Pages without images are absent from the map.
func imageCounts(pdfBytes []byte) (map[int]int, error) {
	fb, err := newFallbackReader(pdfBytes)
	if err != nil {
		return nil, err
	}

	counts := make(map[int]int)
	numPages := fb.reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := fb.reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		xobjs := page.V.Key("Resources").Key("XObject")
		if xobjs.Kind() != pdflib.Dict {
			continue
		}
		n := 0
		for _, name := range xobjs.Keys() {
			if xobjs.Key(name).Key("Subtype").Name() == "Image" {
				n++
			}
		}
		if n > 0 {
			counts[i-1] = n
		}
	}
	return counts, nil
}
