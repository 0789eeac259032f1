// Package value provides the bindable value model shared by every layer of
// sqlbridge.
//
// This package contains pure data and conversion logic only. It performs no
// I/O and imports nothing internal, so the connection layer, the CLI and the
// manifest loader can all depend on it without cycles.
//
// Key design constraints:
//   - Value is a closed tagged union: Null, Integer, Float, Text, Blob, Boolean
//   - FromHost is total: every Go value maps to some Value, composites fall
//     back to JSON text
//   - Bundles are classified by the shape of the parameter argument, never by
//     sniffing the SQL text for ':', '$' or '@'
//   - Integers outside ±(2^53-1) decode as Float (lossy by contract, keeps the
//     decoded type stable for JSON consumers)
package value
