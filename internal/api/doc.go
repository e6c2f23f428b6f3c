// Package api is a thin REST client for gateway discovery.
//
// Endpoints:
//   - GET /gateway       unauthenticated, returns the gateway URL
//   - GET /gateway/bot   authenticated, adds the recommended shard count and
//     the session start limit (total, remaining, reset_after, max_concurrency)
//
// Requests carry the bot token as "Authorization: Bot <token>" and the
// library User-Agent. 5xx and 429 responses are retried with jittered
// exponential backoff, honouring Retry-After on 429.
package api
