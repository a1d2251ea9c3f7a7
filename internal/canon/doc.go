// Package canon serializes propagated values to canonical JSON.
//
// Traces are compared byte for byte (golden files) and hashed (blueprint
// identity), so the same value must always produce the same bytes:
//   - Object keys sorted by UTF-16 code units (RFC 8785)
//   - Strings NFC normalized, no HTML escaping
//   - Integral floats written as integers
//   - Errors written as {"error": "..."}
//
// Values the kernel does not know natively (structs, json.Marshaler
// implementations) go through encoding/json first and are then
// canonicalized.
package canon
