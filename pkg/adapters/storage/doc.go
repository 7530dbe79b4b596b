// Package storage provides analysis record stores.
//
// Implementations:
//   - redis: Redis with JSON serialization, TTL and a per-job index
//   - sqlite: embedded SQLite database for single node deployments
//   - memory: In-memory for testing and development
package storage
