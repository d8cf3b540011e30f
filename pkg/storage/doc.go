// Package storage writes output files so that readers never see a partial
// file. Content goes to <path>.tmp first and is renamed over <path> only
// once it was written and synced completely.
//
//	err := storage.WriteFile("blogs.json", func(w io.Writer) error {
//		return json.NewEncoder(w).Encode(profiles)
//	})
package storage
