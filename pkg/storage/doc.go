// Package storage persists the proxy list.
//
// Three backends implement registry.Store:
//
//   - SQLiteStore keeps the list in a SQLite database, using either the pure
//     Go driver ("sqlite") or the cgo driver ("sqlite3")
//   - YAMLStore keeps the list in a human-editable YAML file; Watch reloads
//     the registry when the file is edited outside the process
//   - MemoryStore keeps the list in memory, for tests and throwaway sessions
//
// Open selects a backend from the storage configuration section.
//
// Compiled matchers are never stored. Only the template, the host mode, the
// association flag and the host list are persisted.
package storage
