// Package state persists the last observed external address as a single
// "ip,server" line.
package state
