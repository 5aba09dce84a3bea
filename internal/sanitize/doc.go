// Package sanitize translates the untyped remote snapshot into model types.
//
// It is the only place in emsync that looks at weakly-typed data. The rules:
//
//   - Any column whose name ends in _ID (case-insensitive), or that is a known
//     identifier alias such as ACC_No, is coerced to a non-negative integer by
//     numeric parse and floor. Empty, missing and null cells are left alone.
//   - Role columns are trimmed, case-folded and mapped to ADMIN / NORMAL.
//     Unrecognized roles pass through unchanged.
//   - Yes/No columns (Active, Finalized, PwD) are normalized the same way.
//   - Every other string is NFC-normalized.
//   - The post-selection relation is accepted as nested arrays,
//     JSON-encoded strings, comma-separated strings or bare scalars.
//
// A coercion that fails affects only the field it was applied to; the pass
// never aborts and never panics. Failures are reported through Report, never
// surfaced to the user.
//
// Sanitize is idempotent: sanitizing the Raw form of a sanitized snapshot
// yields the same snapshot.
package sanitize
