// Package redact removes burned-in text from secondary capture images by
// zeroing configured pixel regions.
//
// Rules identify a class of images by exact header values (vendor, model,
// series description, ...) and are grouped by modality; rules without a
// modality apply to every image. A secondary capture no rule recognises is
// reported as NoRuleMatched so the pipeline can quarantine it instead of
// releasing unknown burned-in content.
package redact
