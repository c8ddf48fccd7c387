// Package files provides discovery of raw platform export files.
//
// Discovery lists the delimited exports in a directory, newest first, and
// resolves the single file a run should process when the operator points the
// tool at a directory instead of a file.
//
// Example usage:
//
//	discovery := files.NewDiscovery("/path/to/base")
//
//	exports, err := discovery.FindExports("data/raw")
//
//	latest, err := discovery.LatestExport("data/raw")
package files
