// Package catalog maintains the pool of echo servers ipwatch samples from.
//
// The pool is downloaded from a published JSON list and cached on disk with a
// 90 day expiry. A cache that is missing, unreadable, structurally wrong or
// expired is ignored and the list is downloaded again. A download that is not
// valid JSON is kept next to the cache for inspection and fails the run; a
// download that simply does not succeed degrades to an empty pool.
package catalog
