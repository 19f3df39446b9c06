// Package pipeline orchestrates policy enforcement around one call:
// pre-auth rate limit, authenticate, post-auth rate limit, authorize,
// invoke the wrapped handler, then privacy-filter the response.
//
// Stages run strictly in that order and the pipeline halts on the first
// rejection. Rate rules keyed by IP or global are evaluated before
// authentication; user- and API-key-keyed rules after. Handler failures
// propagate unmodified and are never retried. Context cancellation is
// observed between stages, but rate-limit tokens already consumed are not
// refunded.
package pipeline
