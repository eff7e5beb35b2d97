package chunk

import "errors"

var (
	// ErrConfig indicates invalid chunk configuration. It fails the job
	// carrying the configuration, never the service.
	ErrConfig = errors.New("invalid chunk configuration")

	// ErrUnknownStrategy indicates a chunk strategy outside {header, token}.
	ErrUnknownStrategy = errors.New("unknown chunk strategy")
)
