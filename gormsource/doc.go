// Package gormsource provides flowpager loaders backed by gorm queries.
//
// OffsetSource pages with LIMIT/OFFSET and integer page keys. KeysetSource
// pages with keyset conditions built from the query ordering and encodes its
// positions as opaque base64url tokens, so it stays stable while rows are
// inserted in front of the window.
//
// Both sources fetch one row past the requested size to tell whether another
// page follows, and report database failures as transient load errors.
package gormsource
