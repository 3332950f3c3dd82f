// Package store persists the pipeline's durable state in SQLite: the
// append-only fingerprint ledger, the article archive, and the publish task
// queue. It is the single source of truth between runs; retries resume from
// here after a process restart.
package store
