// Package daemon owns the long-running sift process: single-instance
// locking, the workflow manager and batch aggregator lifecycles, and the
// HTTP API that receives submissions and decision webhooks.
package daemon
