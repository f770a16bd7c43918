package orchestrator

import "errors"

// ErrLineBusy rejects a mutation for a line that already has one in flight.
var ErrLineBusy = errors.New("line already has a mutation in flight")
