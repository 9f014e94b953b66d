// Package docctx consolidates extracted pages into the single bounded
// document context that grounds an analysis session.
package docctx

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/finlens/finlens/internal/document"
)

// ErrNoContent means the document yielded neither usable text nor imagery.
var ErrNoContent = errors.New("document has no usable content")

// Build concatenates page texts with page-boundary delimiters and selects
// imagery, producing the immutable context for one session.
//
// Text is cut to maxChars by dropping trailing pages whole; only when the
// very first page already overflows is it cut mid-page, backed off to a
// rune boundary so FullText stays valid UTF-8. Either way the Truncated
// flag is set and len(FullText) <= maxChars holds. Images are the
// first maxImages blobs in page order; the rest are dropped, never sampled,
// so selection is reproducible. maxChars <= 0 means no text limit and
// maxImages <= 0 means no image attachments.
func Build(pages []document.PageRecord, maxImages, maxChars int) (*document.Context, error) {
	dc := &document.Context{PageCount: len(pages)}

	var sb strings.Builder
	hasText := false

	for _, page := range pages {
		segment := document.PageDelimiter(page.Index) + "\n" + page.Text
		if sb.Len() > 0 {
			segment = "\n" + segment
		}

		if maxChars > 0 && sb.Len()+len(segment) > maxChars {
			dc.Truncated = true
			if sb.Len() == 0 {
				// Even the first page overflows the budget: keep what fits,
				// never splitting a rune.
				cut := maxChars
				for cut > 0 && !utf8.RuneStart(segment[cut]) {
					cut--
				}
				kept := segment[:cut]
				sb.WriteString(kept)
				// Only page text that survived the cut counts as content;
				// a bare delimiter prefix does not.
				delim := document.PageDelimiter(page.Index) + "\n"
				if len(kept) > len(delim) && strings.TrimSpace(kept[len(delim):]) != "" {
					hasText = true
				}
			}
			break
		}

		sb.WriteString(segment)
		if strings.TrimSpace(page.Text) != "" {
			hasText = true
		}
	}
	dc.FullText = sb.String()

	for _, page := range pages {
		for _, img := range page.Images {
			if maxImages <= 0 || len(dc.Images) >= maxImages {
				break
			}
			dc.Images = append(dc.Images, img)
		}
		if maxImages <= 0 || len(dc.Images) >= maxImages {
			break
		}
	}

	if !hasText && len(dc.Images) == 0 {
		return nil, ErrNoContent
	}
	return dc, nil
}
