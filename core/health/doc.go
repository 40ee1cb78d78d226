// Package health checks service dependencies.
//
// Readiness runs every check and reports all failures together. Monitor repeats the
// checks on an interval and logs when readiness changes, for binaries without an HTTP
// surface:
//
//	checks := []health.Check{
//		pg.Healthcheck(pool),
//		redis.Healthcheck(client),
//		processor.Healthcheck,
//	}
//	if err := health.Readiness(ctx, log, checks...); err != nil {
//		return err
//	}
//	g.Go(health.Monitor(log, 30*time.Second, checks...)(ctx))
//
// Dependency checks follow the func(context.Context) error signature.
package health
