package scheduler

import "errors"

var errPanicked = errors.New("task panicked")
