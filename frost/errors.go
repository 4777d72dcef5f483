package frost

import "errors"

var (
	// ErrNoKey is returned by signing operations when the signer has no
	// loaded key share (keystore file absent or not yet finalized via
	// DKG).
	ErrNoKey = errors.New("frost: signer has no key share loaded")

	// ErrSessionExists is returned when round1 is called with a
	// session_id already in use.
	ErrSessionExists = errors.New("frost: session already exists")

	// ErrSessionNotFound is returned when round2/aggregate reference an
	// unknown or expired session.
	ErrSessionNotFound = errors.New("frost: session not found")

	// ErrSessionUsed is returned when round2 is called twice on the same
	// session (single-use enforcement, spec.md §4.3).
	ErrSessionUsed = errors.New("frost: session already used for round2")

	// ErrSighashMismatch is returned when round2's sighash (including
	// tweak) differs from the sighash committed to in round1.
	ErrSighashMismatch = errors.New("frost: sighash does not match round1 commitment")

	// ErrCeremonyExists is returned when dkg/round1 is called with a
	// ceremony_id already in use.
	ErrCeremonyExists = errors.New("frost: ceremony already exists")

	// ErrCeremonyNotFound is returned when dkg/round2 or dkg/finalize
	// reference an unknown or expired ceremony.
	ErrCeremonyNotFound = errors.New("frost: ceremony not found")

	// ErrInvalidThreshold is returned when the requested (t, n) violates
	// 2 <= t <= n.
	ErrInvalidThreshold = errors.New("frost: threshold must satisfy 2 <= t <= n")

	// ErrIncompleteResponses is returned by the coordinator when fewer
	// than t signers respond healthy or successfully to a round.
	ErrIncompleteResponses = errors.New("frost: incomplete signer responses")

	// ErrKeystoreCorrupt is returned when the on-disk keystore envelope
	// cannot be parsed or decrypted.
	ErrKeystoreCorrupt = errors.New("frost: keystore envelope corrupt or wrong password")

	// ErrSignerHTTP is returned by HTTPSignerClient when a signer node
	// responds with a non-2xx status or malformed JSON.
	ErrSignerHTTP = errors.New("frost: signer http request failed")
)
