// Package catalog serves the scraped course catalog and each user's
// standing target-course selections.
//
// Catalog reads go through a two-level read-through cache (in-process
// LRU, then redis); selections are never cached because session
// creation snapshots them.
package catalog
