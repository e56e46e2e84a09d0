package plaintext

import (
	"bytes"
	"context"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor decodes plain-text uploads as UTF-8. Invalid sequences become
// U+FFFD instead of failing the upload.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, _ string, raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	text := strings.ToValidUTF8(string(raw), "�")
	return strings.TrimSpace(text), nil
}
