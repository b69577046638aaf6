// Package audit relays session transition events to a sink off the request path.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, zap logger, no-op).
//   - [Dispatcher]: buffered async relay that either drops or blocks when full.
//   - [Event]: one login, logout, restore, or upstream rejection.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. The storeAuth Manager decides which events exist.
//
// # What this package must NOT do
//
//   - Filter events based on business logic.
//   - Import storeAuth or any sibling internal package.
package audit
