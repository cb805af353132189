// Package cache memoises source scans for long running modes.
//
// The watch command rebuilds on every file event. Most events touch one
// plugin, so the ScanCache keeps the metadata of unchanged sources in an
// expiring LRU keyed by SHA-256 of the plugin name and source text. A changed
// source hashes to a new key; stale entries age out through the TTL.
//
//	c := cache.NewScanCache(scanner.New(opts), cache.DefaultConfig())
//	md, err := c.ScanFile(ctx, "ins_respawn", path)
package cache
