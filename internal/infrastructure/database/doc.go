// Package database provides the SQLite-backed paired-device store.
//
// The bridge can learn about devices two ways: from peers' retained
// discovery messages on the broker, and from this local store. The store
// exists so that a restarted instance knows its paired devices even when
// the broker's retained state has been flushed.
//
// Schema changes are applied by in-code migrations, each in its own
// transaction, tracked in a schema_migrations table.
package database
