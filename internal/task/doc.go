// Package task provides a bounded in-memory queue with a small worker pool
// for best-effort background writes. Jobs are fire-and-forget: failures are
// logged and counted, never propagated back to the submitting request.
package task
