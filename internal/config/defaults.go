// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// TIMEOUT POLICY
// =============================================================================
//
// One deliberate policy instead of per-call-site ad hoc values:
//   - liveness probes fail fast (2s) so a down backend never stalls the UI
//   - read paths (GET) fail fast (5s)
//   - write and report paths get the generous timeout (30s)

// LivenessProbeTimeout is the deadline for a single health probe.
const LivenessProbeTimeout = 2 * time.Second

// DefaultReadTimeout is the deadline for GET requests.
const DefaultReadTimeout = 5 * time.Second

// DefaultWriteTimeout is the deadline for POST/PUT/DELETE requests.
const DefaultWriteTimeout = 30 * time.Second

// =============================================================================
// LIVENESS CACHE
// =============================================================================

// DefaultLivenessTTL is how long a health probe result is reused before a
// fresh probe is allowed.
const DefaultLivenessTTL = 10 * time.Second

// =============================================================================
// DETECTION HISTORY
// =============================================================================

// DetectionHistoryCapacity is the number of most-recent detection results
// kept per coordinator. Oldest entries are evicted on overflow.
const DetectionHistoryCapacity = 10

// =============================================================================
// AUTH
// =============================================================================

// AuthSchemeBearer sends the credential as "Authorization: Bearer <token>".
const AuthSchemeBearer = "bearer"

// AuthSchemeToken sends the credential as a bare "Authorization: <token>".
const AuthSchemeToken = "token"

// =============================================================================
// TELEMETRY
// =============================================================================

// MaxAuditBodyLen limits request bodies recorded in the audit log.
const MaxAuditBodyLen = 2048
