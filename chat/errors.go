package chat

import "errors"

// Failure classes surfaced by the engine. Handlers map these onto HTTP
// status codes and payloads; none of them is ever fatal for the process.
var (
	// ErrRateLimited reports an exhausted call budget. It is distinct from
	// ErrUnauthorized so a throttled caller is never told its credentials
	// are bad.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized covers banned callers, bad credentials, and
	// ineligible externally-verified identities.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict reports an identity that is already online.
	ErrConflict = errors.New("identity already online")

	// ErrValidation reports a malformed or empty claim request.
	ErrValidation = errors.New("invalid request")

	// ErrUpstream wraps identity-provider failures during delegated
	// verification. Handlers convert it to a generic login-failed
	// response without leaking provider detail.
	ErrUpstream = errors.New("identity provider failure")
)
