// Package repositories implements local persistence for session keys, the provider and playlist
// selection, and transfer history.
//
// Key Implementations:
//   - [SQLiteStore] : key/value rows in session_store
//   - [RedisStore] : the same contract on a Redis server, keys namespaced by a prefix
//   - [SelectionRepository] : sourceServiceId, targetServiceId and selectedPlaylistIds on top of a [Store]
//   - [TransferRepository] : transfer bookkeeping with soft deletes, listed newest first
//
// [NextSequence] advances the per-table counters that order history listings.
package repositories
