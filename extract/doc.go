// Package extract defines the extraction engine boundary.
//
// An Engine converts raw document bytes into text plus structural
// metadata, or a typed failure. The engine's internal correctness is a
// collaborator concern; the rest of the system depends only on the
// Extract contract defined here.
//
// Implementations live in subpackages:
//   - extract/textengine: plain-text and markdown documents
//   - extract/mock: configurable test double
package extract
