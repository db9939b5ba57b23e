package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Catalogue source errors
	ErrSourceUnavailable = fmt.Errorf("catalogue source unavailable")
	ErrSourceUnknown     = fmt.Errorf("unknown catalogue source")
	ErrEntryNotFound     = fmt.Errorf("entry not found")
	ErrNoChaptersFound   = fmt.Errorf("no chapters found")
	ErrNoCandidateFound  = fmt.Errorf("no candidate found")

	// Migration errors
	ErrUnitNotFound      = fmt.Errorf("migration unit not found")
	ErrUnitNotResolved   = fmt.Errorf("migration unit has no resolved candidate")
	ErrBatchClosed       = fmt.Errorf("migration batch already closed")
	ErrReconcileConflict = fmt.Errorf("chapter reconciliation rejected by store")
	ErrApplyFailed       = fmt.Errorf("migration apply transaction failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
