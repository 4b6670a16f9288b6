// Package common holds the small set of types shared by the ipwatch packages:
// the address record produced by a resolution attempt, the blacklist applied
// to candidate addresses and the sentinel strings that stand in for an
// address when none could be determined.
package common
