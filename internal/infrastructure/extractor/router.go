package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kirillkom/securedoc-assistant/internal/core/ports"
)

// Router picks a text extractor by filename extension. Plain text is decoded
// directly, workbooks go to the spreadsheet extractor, and everything else is
// treated as PDF.
type Router struct {
	plainText   ports.TextExtractor
	spreadsheet ports.TextExtractor
	fallback    ports.TextExtractor
}

func NewRouter(plainText, spreadsheet, fallback ports.TextExtractor) *Router {
	return &Router{plainText: plainText, spreadsheet: spreadsheet, fallback: fallback}
}

func (r *Router) Extract(ctx context.Context, filename string, raw []byte) (string, error) {
	return r.route(filename).Extract(ctx, filename, raw)
}

func (r *Router) route(filename string) ports.TextExtractor {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return r.plainText
	case ".xlsx":
		if r.spreadsheet != nil {
			return r.spreadsheet
		}
	}
	return r.fallback
}
