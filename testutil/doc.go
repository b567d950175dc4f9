// Package testutil provides deterministic random data generation for tests:
// seeded payloads for round-trip checks and churn sequences for allocation
// invariant checks.
package testutil
