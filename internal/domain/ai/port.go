package ai

import "context"

// Client invokes the remote analysis function on one data-URL encoded
// panorex image and returns the raw HTML-bearing report.
type Client interface {
	Analyze(ctx context.Context, imageDataURL string) (string, error)
}
