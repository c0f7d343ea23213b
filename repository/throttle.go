package repository

import (
	"context"
	"time"
)

type ThrottleRepository interface {
	// Allow counts a hit against key and reports whether it stays within limit for the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}
