package tier

import (
	"context"
	"time"
)

// EdgeDriver stands in for a CDN integration that is not configured: reads
// always miss, writes and deletes succeed silently, enumeration sees nothing.
// Keeping the tier present as an explicit variant means strategies can declare
// an edge tier today and bind a real driver later without changing callers.
type EdgeDriver struct{}

func NewEdgeDriver() *EdgeDriver { return &EdgeDriver{} }

func (d *EdgeDriver) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (d *EdgeDriver) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (d *EdgeDriver) Delete(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (d *EdgeDriver) Keys(ctx context.Context, pattern string) ([]string, error) {
	return nil, nil
}

func (d *EdgeDriver) Size(ctx context.Context) (int64, error) {
	return 0, nil
}
