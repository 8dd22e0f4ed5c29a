package store

import "errors"

// ErrNotFound is wrapped by every lookup that misses so callers can map
// it to a 404 without matching on message text.
var ErrNotFound = errors.New("not found")
