// Package redis creates go-redis clients with connection verification and health checking.
//
// Connect parses the connection URL, pings the server and retries with exponential
// backoff until the server answers or the attempts run out:
//
//	cfg := redis.Config{ConnectionURL: "redis://localhost:6379/0"}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	check := redis.Healthcheck(client)
//	if err := check(ctx); err != nil {
//		// redis is unreachable
//	}
//
// Config carries env tags and can be filled with config.Load:
//
//	REDIS_URL              connection URL (redis:// or rediss://)
//	REDIS_RETRY_ATTEMPTS   connection attempts, default 3
//	REDIS_RETRY_INTERVAL   initial delay between attempts, default 5s
//	REDIS_CONNECT_TIMEOUT  overall connect deadline, default 30s
//
// # Errors
//
//   - ErrEmptyConnectionURL: no connection URL configured
//   - ErrFailedToParseRedisConnString: URL is malformed or uses another scheme
//   - ErrRedisNotReady: server did not answer within the retry budget
//   - ErrHealthcheckFailed: ping failed
package redis
