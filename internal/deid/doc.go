// Package deid rewrites image headers so they no longer identify the
// patient. An Engine walks the header once per image and applies the
// action the tag table assigns to each tag: empty the value, hash the
// patient identifier, hash a UID with the run salt, or shift a date by the
// patient's offset.
//
// The salt is loaded once with LoadSalt and passed to New; a missing salt
// stops the run before any image is touched.
package deid
