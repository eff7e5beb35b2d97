package extract

import "errors"

var (
	// ErrExtraction indicates the engine could not extract the document.
	// It is recorded on the failed job with its message preserved.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmptyDocument indicates an empty payload was handed to the engine.
	ErrEmptyDocument = errors.New("empty document content")
)
