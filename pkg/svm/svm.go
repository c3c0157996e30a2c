// Package svm holds the execution budget shared by every program call made
// on behalf of one top-level instruction.
//
// The processor itself lives in pkg/svm/executor; program implementations
// live under pkg/svm/programs. This package only defines the compute meter,
// the cost schedule and the nesting limit, so that programs can charge
// compute without importing the executor.
package svm

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrComputeExceeded is returned when compute units are exhausted.
	ErrComputeExceeded = errors.New("compute units exceeded")
)
