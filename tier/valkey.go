package tier

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"
)

const scanPageSize = 256

// ValkeyDriver is the networked tier: keys live in a Valkey (open-source
// Redis) instance with native expiry, so TTL handling and key-count
// introspection map directly onto store primitives. Because every process
// writes through the same instance, its SCAN enumeration is authoritative for
// the whole keyspace.
type ValkeyDriver struct {
	client valkey.Client
}

func NewValkeyDriver(client valkey.Client) *ValkeyDriver {
	return &ValkeyDriver{client: client}
}

func (d *ValkeyDriver) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := d.client.Do(ctx, d.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	value, err := resp.AsBytes()
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (d *ValkeyDriver) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return d.client.Do(
		ctx, d.client.B().Set().
			Key(key).
			Value(valkey.BinaryString(value)).
			Ex(ttl).
			Build(),
	).Error()
}

func (d *ValkeyDriver) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := d.client.Do(ctx, d.client.B().Del().Key(key).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// Keys walks the store with an incremental SCAN cursor so enumeration never
// blocks the instance the way KEYS would.
func (d *ValkeyDriver) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}

	var keys []string
	var cursor uint64
	for {
		resp := d.client.Do(
			ctx, d.client.B().Scan().
				Cursor(cursor).
				Match(pattern).
				Count(scanPageSize).
				Build(),
		)
		entry, err := resp.AsScanEntry()
		if err != nil {
			return nil, err
		}
		keys = append(keys, entry.Elements...)
		cursor = entry.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (d *ValkeyDriver) Size(ctx context.Context) (int64, error) {
	return d.client.Do(ctx, d.client.B().Dbsize().Build()).AsInt64()
}
