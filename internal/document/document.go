package document

import "fmt"

// PageRecord holds the extracted content of a single PDF page.
type PageRecord struct {
	Index  int         // Zero-based page index
	Text   string      // Machine-readable text in reading order (may be empty)
	Images []ImageBlob // Rasterized imagery found on this page
}

// ImageBlob is an encoded page image.
type ImageBlob struct {
	Format string // "png" or "jpeg"
	Data   []byte // Encoded bytes
	Width  int
	Height int
}

// MIMEType returns the MIME type for the blob's format.
func (b ImageBlob) MIMEType() string {
	return "image/" + b.Format
}

// Context is the fixed text+image snapshot of one uploaded PDF that grounds
// an entire conversation. It is built once and never mutated; a session that
// holds one answers every question against the same snapshot.
type Context struct {
	FullText  string      // All page texts joined with page delimiters
	Images    []ImageBlob // Selected imagery, page order, capped
	PageCount int         // Pages in the source document
	Truncated bool        // True if FullText was cut to fit the char budget
}

// PageDelimiter returns the boundary marker inserted before page i, so the
// model can cite "page N" in its answers.
func PageDelimiter(i int) string {
	return fmt.Sprintf("--- page %d ---", i)
}
