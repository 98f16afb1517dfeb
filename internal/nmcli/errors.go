package nmcli

import "strings"

// nmcli does not expose structured error codes over its CLI, so failures are
// classified by case-insensitive substring matching against known phrases.
// These predicates are the single triage point for every call site; an
// unmatched message takes the fatal path.

// IsActivationQueued reports the non-failure case where NetworkManager
// accepted the activation request asynchronously.
func IsActivationQueued(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "activation was enqueued") || strings.Contains(m, "enqueued")
}

// IsNetworkNotFound reports the transient pre-rescan case of an SSID the
// supplicant has not seen yet.
func IsNetworkNotFound(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "network could not be found") ||
		strings.Contains(m, "no network with ssid") ||
		(strings.Contains(m, "not found") && strings.Contains(m, "ssid"))
}

// IsKeyMgmtMissing reports the missing wifi-sec.key-mgmt property, recovered
// by the explicit profile-creation fallback.
func IsKeyMgmtMissing(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "key-mgmt") && strings.Contains(m, "missing")
}

// IsConnectionInterrupted reports the transient interruption of the base
// connection during activation, recovered by rescan-then-retry.
func IsConnectionInterrupted(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "base network connection was interrupted") ||
		strings.Contains(m, "connection was interrupted")
}

// IsAlreadyExists reports a duplicate profile add, tolerated during the
// key-mgmt fallback.
func IsAlreadyExists(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "already exists")
}

// IsUnknownConnection reports deletion of a profile that does not exist,
// treated as success for idempotent teardown.
func IsUnknownConnection(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "unknown connection")
}
