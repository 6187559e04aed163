// Package models defines the entities exchanged between the catalog adapters, the transfer pipeline and storage.
//
// Data transfer objects are provider-neutral and immutable once read:
//   - [Track] : one song as seen by one provider (id, name, artists)
//   - [Playlist] : playlist metadata (id, name, description, image, link, track count)
//   - [Profile] : the signed-in user of a provider
//
// [ProviderID] values ("spotify", "google", "apple") key the adapter registry and the persisted selections.
//
// [TransferRecord] is the only persisted entity. It keeps per-job bookkeeping (status, counts, last error)
// so a later run can show what happened; jobs themselves live in memory.
package models
