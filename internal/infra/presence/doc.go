// Package presence reports coarse online/offline transitions to an
// external HTTP collaborator.
//
// Reports are best effort: events are queued without blocking the caller,
// posted once, and dropped when the queue is full or the request fails.
package presence
