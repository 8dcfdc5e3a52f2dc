package ai

import "errors"

// ErrAnalysisFailed is the single outcome surfaced to the caller for any
// remote failure (transport, application error, malformed payload). The
// underlying cause is preserved via wrapping for the usage log only.
var ErrAnalysisFailed = errors.New("analysis failed")

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")
