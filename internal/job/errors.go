package job

import "errors"

var (
	// ErrCancelled marks a job stopped on user request between batches.
	ErrCancelled = errors.New("import cancelled")

	// ErrPersistence marks a database failure while loading or linking.
	ErrPersistence = errors.New("persistence failure")
)
