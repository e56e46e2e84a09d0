package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
)

// Extractor pulls plain text out of PDF uploads. Encrypted and unreadable
// files fail with domain.ErrExtraction.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, filename string, raw []byte) (text string, err error) {
	if len(raw) == 0 {
		return "", domain.WrapError(domain.ErrExtraction, "extract pdf", fmt.Errorf("%s: empty file", filename))
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.WrapError(domain.ErrExtraction, "extract pdf", fmt.Errorf("%s: malformed pdf: %v", filename, r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "extract pdf", describeOpenError(filename, err))
	}
	// An empty user password opens owner-protected files without a prompt;
	// those still count as encrypted.
	if !reader.Trailer().Key("Encrypt").IsNull() {
		return "", domain.WrapError(domain.ErrExtraction, "extract pdf", fmt.Errorf("%s: document is encrypted", filename))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "extract pdf", fmt.Errorf("%s: read text: %w", filename, err))
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "extract pdf", fmt.Errorf("%s: read text: %w", filename, err))
	}
	return strings.TrimSpace(buf.String()), nil
}

func describeOpenError(filename string, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
		return fmt.Errorf("%s: document is encrypted: %w", filename, err)
	}
	return fmt.Errorf("%s: unreadable pdf: %w", filename, err)
}
