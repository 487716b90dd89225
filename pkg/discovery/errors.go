package discovery

import "errors"

// ErrAlreadyRunning is returned by Start on a watcher that is already
// polling.
var ErrAlreadyRunning = errors.New("watcher already running")
