// Package session provides core.SessionStore implementations: a
// process-local in-memory store for tests and single-node deployments, and a
// Redis-backed store that bounds session lifetime with a TTL.
package session
