package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/finlens/finlens/internal/document"
)

var (
	// ErrCorruptDocument means the byte stream is not a parseable PDF.
	ErrCorruptDocument = errors.New("corrupt document")
	// ErrEmptyDocument means the PDF parsed but has zero pages.
	ErrEmptyDocument = errors.New("empty document")
)

// DefaultDPI is the rasterization target for page imagery.
const DefaultDPI = 150

// Extractor turns a PDF byte stream into page-ordered records of text and
// imagery. It holds no state between calls; every Extract opens and closes
// its own resources.
type Extractor struct {
	DPI float64
}

func New() *Extractor {
	return &Extractor{DPI: DefaultDPI}
}

// Extract parses pdfBytes and returns one PageRecord per page, in page
// order. Text comes from the MuPDF layout engine, with a fallback to the
// pure-Go PDF reader for pages MuPDF cannot read. Pages that carry at least
// one image XObject are rasterized whole at the configured DPI and encoded
// as a PNG blob. The ctx deadline bounds the whole call; it is checked
// between pages.
func (e *Extractor) Extract(ctx context.Context, pdfBytes []byte) ([]document.PageRecord, error) {
	if !bytes.Contains(sniff(pdfBytes), []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing PDF header", ErrCorruptDocument)
	}

	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, ErrEmptyDocument
	}

	dpi := e.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	// Best-effort enumeration of image XObjects per page. If the resource
	// walk fails entirely, rasterize every page rather than lose imagery.
	counts, countErr := imageCounts(pdfBytes)

	records := make([]document.PageRecord, 0, pageCount)
	var fb *fallbackReader

	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extract aborted at page %d: %w", i, err)
		}

		rec := document.PageRecord{Index: i}

		text, err := doc.Text(i)
		if err != nil || strings.TrimSpace(text) == "" {
			if fb == nil {
				fb, _ = newFallbackReader(pdfBytes)
			}
			if fb != nil {
				if t, ferr := fb.pageText(i); ferr == nil {
					text = t
				}
			}
		}
		rec.Text = text

		if countErr != nil || counts[i] > 0 {
			blob, err := e.renderPage(doc, i, dpi)
			if err != nil {
				return nil, fmt.Errorf("%w: rasterize page %d: %v", ErrCorruptDocument, i, err)
			}
			rec.Images = append(rec.Images, blob)
		}

		records = append(records, rec)
	}

	return records, nil
}

func (e *Extractor) renderPage(doc *fitz.Document, page int, dpi float64) (document.ImageBlob, error) {
	img, err := doc.ImageDPI(page, dpi)
	if err != nil {
		return document.ImageBlob{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return document.ImageBlob{}, err
	}

	bounds := img.Bounds()
	return document.ImageBlob{
		Format: "png",
		Data:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// sniff returns the first KB of data, where a valid PDF header must appear.
func sniff(data []byte) []byte {
	if len(data) > 1024 {
		return data[:1024]
	}
	return data
}
