// Package dedup drops webhook deliveries the platforms retry after a slow
// or failed acknowledgement.
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config controls how long a delivery id is remembered.
type Config struct {
	TTL    time.Duration `env:"DEDUP_TTL" envDefault:"24h"`
	Prefix string        `env:"DEDUP_PREFIX" envDefault:"chatbridge:inbound:"`
}

// Guard claims delivery ids.
type Guard interface {
	// Claim reports whether key is seen for the first time.
	Claim(ctx context.Context, key string) (bool, error)
}

// Redis claims ids with SET NX EX.
type Redis struct {
	client redis.Cmdable
	cfg    Config
}

func NewRedis(client redis.Cmdable, cfg Config) *Redis {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Redis{client: client, cfg: cfg}
}

func (r *Redis) Claim(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, r.cfg.Prefix+key, 1, r.cfg.TTL).Result()
}

// Disabled accepts every delivery. It is used when no Redis is configured.
type Disabled struct{}

func (Disabled) Claim(context.Context, string) (bool, error) { return true, nil }
