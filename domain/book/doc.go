// Package book implements the in-memory matching core for a single
// instrument. It maintains two red-black trees of price levels for the
// bid and ask sides, matches incoming orders under price-time priority,
// and appends every fill to an internal trade journal.
//
// The book is a single-writer structure: callers serialise all mutating
// operations. No call blocks or suspends, and every trade produced by a
// call is appended to the journal before the call returns.
package book
