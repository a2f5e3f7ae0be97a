package batch

import "errors"

// ErrSkipped marks items not attempted because an earlier item stopped the batch.
var ErrSkipped = errors.New("batch item skipped")
