// Package checkpoint persists search progress so an interrupted or
// budget-stopped run can resume without re-qualifying blogs.
//
// A progress file holds the qualified profiles, the themes each blog was
// found under, the rate governor's window state, a timestamp and a run id.
// By default it lives at search_progress.json in the working directory; an
// empty path selects the per-user data directory instead:
//   - Linux: $XDG_DATA_HOME/tagfinder or ~/.local/share/tagfinder
//   - macOS: ~/Library/Application Support/tagfinder
//   - Windows: %APPDATA%/tagfinder
package checkpoint
