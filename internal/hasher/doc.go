// Package hasher turns identifying values into stable pseudonyms.
//
// HashIdentifier produces a 40-character hex digest of the raw value and is
// used for patient identifiers. HashAsUID mixes in the run salt and formats
// the digest as a decimal UID under the 1.2.840.10008. root, so hashed
// study, series and instance UIDs stay valid UIDs and stay linked to each
// other across files.
//
// SHA-1 is the default digest so new output matches previously released
// datasets; BLAKE2b with a 160-bit output is available for new projects.
package hasher
