// Package ratelimit implements the rate-limiting engine behind declared
// rate rules: leaky-bucket admission keyed by IP, user, API key, or a
// shared bucket, with bypass roles and a swappable backing store.
//
// Tokens refill continuously at allowed_requests/time_window_seconds per
// second up to burst_capacity, and one token is consumed per admitted
// request. Rejections carry a retry-after hint. The default store keeps
// per-key buckets in memory behind sharded locks; distinct keys never
// contend. Tokens are spent at admission and are not refunded if the call
// is later abandoned.
package ratelimit
