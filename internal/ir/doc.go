// Package ir defines the model and record types shared by every other
// package: dimensions, values, guard rules, branches, scenarios, ledger
// entries and impact records.
//
// ir imports nothing internal. Identity is content-addressed: scenario ids
// are SHA-256 digests of the RFC 8785 canonical JSON of their sorted
// dimension:value pairs, so the same model always yields the same ids.
//
// Constraints carried through the package:
//   - No float types in hashed data; decimals travel as IRDecimal text
//   - Wildcard assignments hash and print as "*" whatever the declared id
//   - JSON tags use snake_case
package ir
