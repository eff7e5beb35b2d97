// Package chunk splits extracted document text into ordered chunks for
// downstream retrieval and embedding use.
//
// Two interchangeable strategies are provided:
//
//   - HeaderSplitter cuts at marker-prefixed header lines, dropping
//     accumulations shorter than a configurable minimum.
//   - TokenSplitter emits deterministic fixed-size sliding windows with
//     overlap, snapping window ends back to whitespace where possible.
//
// Chunk ordinals within one document are unique and strictly increasing
// and are never renumbered after emission.
package chunk
