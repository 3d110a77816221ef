package cli

import (
	"context"
	"errors"

	"github.com/shelldep/shelldep/internal/errs"
)

// Exit codes per the analyzer's external command-line contract: 0 success,
// 2 usage error, 3 input-tree I/O failure, 4 store failure, 5
// store-incompatible, 130 cancelled.
const (
	ExitSuccess           = 0
	ExitUsage             = 2
	ExitInputFailure      = 3
	ExitStoreFailure      = 4
	ExitStoreIncompatible = 5
	ExitCancelled         = 130
)

// ExitCode maps a returned error to the process exit status the CLI
// reports.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ExitCancelled
	}
	var e *errs.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case errs.InputNotFound, errs.InputUnreadable:
			return ExitInputFailure
		case errs.StoreIncompatible:
			return ExitStoreIncompatible
		case errs.StoreUnavailable:
			return ExitStoreFailure
		}
	}
	return ExitUsage
}
