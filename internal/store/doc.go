// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Models
//
//   - Device: Registered hardware agent with group membership and online status
//   - Group: Named collection of devices
//   - Trigger: Named condition configured on a device (gpio_input, schedule, api_call)
//   - Action: One step run when its trigger fires, ordered by sequence number
//   - EventLog: Immutable audit record of device activity
//
// Trigger and Action configuration payloads are stored as serialized JSON
// strings and decoded only when assembling a device's config snapshot.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created automatically on open. Deleting a device cascades to
// its triggers and actions; event logs are retained and pruned only by the
// retention cleanup operation.
//
// # Online Status
//
// The gateway's connection hub is the sole writer of the is_online flag:
// SetDeviceOnline on register, SetDeviceOffline on disconnect or liveness
// timeout. Both writes are idempotent because the in-memory registry, not
// the persisted flag, decides whether a device is reachable.
//
// # Error Handling
//
// ErrNotFound is returned when a requested entity does not exist. All methods
// accept context.Context for cancellation support.
//
// Use NewSQLiteStore(":memory:") for tests.
package store
