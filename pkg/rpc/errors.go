package rpc

import "errors"

// ErrNoBlock is returned when the node answers without a block, which it
// does for heights it has not reached yet.
var ErrNoBlock = errors.New("no block in response")
