// Package watcher watches the shared document pool and reports batches of
// debounced file changes.
//
// Events for the same path inside the debounce window are coalesced, so an
// editor's save sequence (create temp, write, rename) arrives as one change.
// Hidden files and directories are skipped except for names listed in
// Options.Watch, which lets the pool ignore file trigger a refresh.
package watcher
