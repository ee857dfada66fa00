package domain

import "context"

type ReviewRepository interface {
	// InsertReview returns *DuplicateIDError when (platform, id) already exists.
	InsertReview(ctx context.Context, r ReviewRecord) error
	ListReviews(ctx context.Context, p Platform) ([]ReviewRecord, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
