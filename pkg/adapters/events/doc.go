// Package events provides event bus implementations for analysis events.
//
// Implementations:
//   - redis: Redis Streams, one consumer group per subscription
//   - memory: In-process fan-out for tests and single node deployments
package events
