// Package dashboard keeps one cached dashboard slice per role.
//
// Slices are filled two ways. Refresh pulls a full snapshot through a
// Fetcher and replaces Data wholesale. ApplyUpdate shallow-merges a
// pushed partial update into the existing Data, leaving keys it does not
// mention untouched. Whichever lands last wins.
//
// A refresh that completes after the slice was cleared is discarded, so a
// slow response from one session never repopulates the next.
package dashboard
