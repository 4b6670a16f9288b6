// Package fetcher queries a single echo server for the caller's external
// address.
//
// A fetch is best effort: one GET with a short timeout, the body decoded as
// UTF-8 (Latin-1 when that fails) and scanned for the first dotted-quad IPv4
// literal. Every failure, from a refused connection to a page without an
// address, yields an empty string. Callers decide what to do with it.
package fetcher
