// Package herr defines the Halo core's error kinds as sentinel errors
// wrapped with errors.Is-compatible context, using a "pkg: context: %w"
// wrapping convention throughout.
package herr

import "errors"

// Sentinel kinds. Wrap with fmt.Errorf("pkg: context: %w", ErrX) and unwrap
// with errors.Is at call sites that need to distinguish error kinds.
var (
	// ErrValidation: malformed identifier, illegal date, failing checksum.
	// Returned to the caller; no state change.
	ErrValidation = errors.New("halo: validation error")

	// ErrNotFound: entity/mention by id absent. Returned to caller.
	ErrNotFound = errors.New("halo: not found")

	// ErrConflict: unique-constraint race (duplicate identifier, duplicate
	// live fact). The resolver retries once after re-blocking; a persistent
	// conflict is surfaced as this error.
	ErrConflict = errors.New("halo: conflict")

	// ErrCrypto: decryption tag mismatch, unknown ciphertext prefix, missing
	// key. Never silently masked — callers see this opaque error and the
	// record should be flagged by an audit entry.
	ErrCrypto = errors.New("halo: crypto error")

	// ErrIntegrity: audit chain verification failure. Non-recoverable in
	// situ; surfaces to operators. The system must continue to accept writes
	// (an attacker must not be able to halt operations by corrupting the
	// chain) but must flag the condition in every affected response until
	// resolved.
	ErrIntegrity = errors.New("halo: integrity error")

	// ErrTimeout: bounded work exceeded its budget. No package in this module
	// returns it: the resolver has no per-mention time budget, and a pattern
	// query whose statement deadline expires returns the query's error with
	// no partial result.
	ErrTimeout = errors.New("halo: timeout")
)
