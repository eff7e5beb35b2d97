// Package mock provides a configurable test double for the extraction
// engine boundary. The default behavior is deterministic: the payload is
// treated as UTF-8 text and returned unchanged with heuristic metadata.
package mock
