// Package rendercache holds rendered image text in two tiers: a tiny
// in-memory map limited to the entries around the cursor, and an on-disk
// store spanning a wider window that lives for one catalog generation.
//
// Both tiers are safe for concurrent use. Disk failures never escape as
// fatal errors; they surface as ErrCacheIO values which callers treat as
// a miss.
package rendercache
