// Package tasks moves playlists between streaming providers with real-time progress reporting.
//
// # Pipeline
//
// Each selected playlist becomes a [Job] that a [Pipeline] drives through its stages:
//
//  1. [LoadingSourceTracks] : list the source playlist and resolve every track in the target catalog
//     ([Resolver]: search by name and first artist, best fuzzy candidate above the threshold)
//  2. [CreatingTargetPlaylist] : reuse the first target playlist with exactly the same name or create one
//     ([Materializer])
//  3. [LoadingTargetTracks] : read what the target playlist already holds
//  4. [AddingTracks] : add only the missing ids in batches ([Inserter])
//
// Any failing stage moves the job to [Error]. [Job.Reset] returns it to the first stage.
//
// # Orchestration
//
// The [Orchestrator] runs jobs one at a time. On failure it asks a [Decider] to [Retry], [Skip]
// or [Abort]. Transfers are recorded through a [Recorder] and a sign-out or expiry of either
// provider, observed through [services.Session.Subscribe], cancels the run.
//
// # Progress Reporting
//
// Components send [ProgressUpdate] values on a channel with select and default, so a slow
// reader never blocks a transfer.
package tasks
