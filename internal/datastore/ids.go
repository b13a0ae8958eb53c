package datastore

import "time"

// nextID returns a millisecond-timestamp-like id that is strictly greater
// than every id already in the document, so rapid inserts within the same
// millisecond (or a clock that went backwards) never collide.
func nextID(now time.Time, maxExisting int64) int64 {
	id := now.UnixMilli()
	if id <= maxExisting {
		id = maxExisting + 1
	}
	return id
}
