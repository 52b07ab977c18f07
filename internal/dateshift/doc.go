// Package dateshift moves dates by a pseudo-random per-patient offset while
// keeping the mapping consistent for a whole run.
//
// The offset is drawn from a ChaCha8 generator seeded with a SHA-256 of the
// patient key and the run salt, so it is reproducible given the salt and
// unknowable without it. Results are memoised in a Cache whose scope
// decides whether equal dates from different patients share a shift
// (ScopeDate) or not (ScopePatient).
package dateshift
