package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = errors.New("token redis unavailable")

const (
	defaultGrace  = 30 * 24 * time.Hour
	scanBatchSize = 256
)

// Options tunes a Redis repository.
type Options struct {
	Prefix string
	// Grace is added to each record's expiry to form the key TTL.
	Grace time.Duration
}

func (o Options) withDefaults(prefix string) Options {
	if o.Prefix == "" {
		o.Prefix = prefix
	}
	if o.Grace <= 0 {
		o.Grace = defaultGrace
	}
	return o
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func keyTTL(expiresAt, now time.Time, grace time.Duration) time.Duration {
	ttl := expiresAt.Sub(now) + grace
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func replyString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

// sweepKeys scans keys matching pattern and runs script on each with args
// followed by the key suffix after trim. It returns the sum of script results.
func sweepKeys(
	ctx context.Context,
	client redis.UniversalClient,
	script *redis.Script,
	pattern string,
	trim int,
	args ...interface{},
) (int64, error) {
	var (
		cursor uint64
		total  int64
	)
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return total, unavailable(err)
		}
		for _, key := range keys {
			n, err := script.Run(ctx, client, []string{key}, append(args, key[trim:])...).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return total, unavailable(err)
			}
			total += n
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
