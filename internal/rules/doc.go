// Package rules loads the three rule sets that drive the pipeline:
//
//   - TagTable: which tags are removed, date shifted, hashed as UIDs, or
//     hashed as identifiers (CSV)
//   - RedactionRules: which secondary captures have burned-in regions to
//     clear, stratified by modality (YAML)
//   - QuarantineRules: the ordered per-modality quarantine predicates and
//     their switches (YAML, with built-in defaults)
//
// Every table is validated and resolved at load time. Unknown tags, rule
// names and malformed regions fail before any image is processed.
package rules
