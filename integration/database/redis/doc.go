// Package redis connects a go-redis client with retry and exposes a
// readiness check. The client backs inbound webhook deduplication.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	check := redis.Healthcheck(client)
//
// Only redis:// and rediss:// URLs are accepted.
package redis
