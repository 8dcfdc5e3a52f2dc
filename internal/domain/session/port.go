package session

import "context"

// ReportRepository port for the report archive
type ReportRepository interface {
	Save(ctx context.Context, r *ReportRecord) error
	Paginate(ctx context.Context, page, pageSize int) ([]*ReportRecord, error)
}

// ImageStore port for archiving uploaded images and exported PDFs
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
