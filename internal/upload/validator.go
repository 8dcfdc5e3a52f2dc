package upload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Rejection reasons. Callers match with errors.Is to surface a specific
// message; wrapped variants carry the offending detail.
var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrFileTooLarge   = errors.New("file exceeds maximum size")
	ErrDisallowedType = errors.New("file type not allowed")
)

// Validator inspects a candidate file before it enters the pipeline.
// Pure inspection, no side effects. Declared metadata comes from the
// client, so content is re-sniffed before the declared type is trusted.
type Validator struct {
	maxBytes int64
	allowed  map[string]bool
}

func NewValidator(maxBytes int64, allowedTypes []string) *Validator {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Validator{maxBytes: maxBytes, allowed: allowed}
}

// Validate checks emptiness, size and type, in that order. It returns
// the resolved MIME type on acceptance. Content sniffing wins over the
// declared type; the declared type is only consulted when sniffing is
// inconclusive.
func (v *Validator) Validate(filename, declaredMIME string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%s: %w", filename, ErrEmptyFile)
	}
	if v.maxBytes > 0 && int64(len(data)) > v.maxBytes {
		return "", fmt.Errorf("%s is %d bytes (max %d): %w", filename, len(data), v.maxBytes, ErrFileTooLarge)
	}

	resolved := mimetype.Detect(data).String()
	// Detect never fails; application/octet-stream means it gave up.
	if resolved == "application/octet-stream" && declaredMIME != "" {
		resolved = declaredMIME
	}
	// strip parameters like "; charset=utf-8"
	if i := strings.Index(resolved, ";"); i >= 0 {
		resolved = resolved[:i]
	}
	resolved = strings.ToLower(strings.TrimSpace(resolved))

	if !v.allowed[resolved] {
		return "", fmt.Errorf("%s detected as %s: %w", filename, resolved, ErrDisallowedType)
	}
	return resolved, nil
}

// BuildDataURL encodes file bytes as a base64 data URL usable directly
// as an image source and as the remote analysis payload.
func BuildDataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURL is the inverse of BuildDataURL. The exporter uses it to
// recover raw image bytes for PDF embedding.
func DecodeDataURL(dataURL string) (mimeType string, data []byte, err error) {
	const scheme = "data:"
	if !strings.HasPrefix(dataURL, scheme) {
		return "", nil, fmt.Errorf("not a data URL")
	}
	rest := dataURL[len(scheme):]
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return "", nil, fmt.Errorf("malformed data URL")
	}
	meta := rest[:comma]
	payload := rest[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("unsupported data URL encoding")
	}
	mimeType = strings.TrimSuffix(meta, ";base64")
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL: %w", err)
	}
	return mimeType, data, nil
}
