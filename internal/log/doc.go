// Package log provides secure logging built on top of the standard slog
// package.
//
// The SecureHandler masks attribute values before they reach the output:
//   - the hashing salt and anything derived from it
//   - patient identity keys (patient_id, patient_name, mrn, birth_date)
//   - values shaped like DICOM person names or long key material
//
// Even in verbose mode, masked values never appear in the log. Paths and
// accession numbers are not masked; anon.txt records them on purpose.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("date shifted", "tag", "(0008,0020)", "patient_id", id)
//	// patient_id=***REDACTED***
//	slog.SetDefault(logger)
package log
