package scheduler

import "errors"

// ErrAlreadyRun is returned by Run on a Scheduler that has already run.
var ErrAlreadyRun = errors.New("scheduler already run")
