// Package textengine provides the built-in extraction engine for
// plain-text and markdown payloads. Use NewEngine to obtain an
// extract.Engine backed by this package.
package textengine
