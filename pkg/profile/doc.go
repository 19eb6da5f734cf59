// Package profile manages the parts of the user's profile the search layer
// touches: saved searches, favourite listings and the bio.
//
// Each service keeps a cached copy of what it last read or wrote. Writes
// replace the whole remote list and only update the cached copy once the
// remote call succeeds, so a failed write (after the client's retries)
// leaves the cached data as it was.
package profile
