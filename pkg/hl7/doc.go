// Package hl7 builds HL7 v2.5 ORU^R01 wire text from structured clinical
// input.
//
// The package works in two stages. [Validate] checks a [BuildInput] against
// the business rules and reports every violation in a single
// [ValidationErrors] value; it never stops at the first problem. [Convert]
// turns a valid input into the canonical in-memory [ClinicalMessage], and
// [Serialize] renders that message as pipe-delimited segment text:
//
//	MSH|^~\&|HL7GW|LAB|...|HOSPITAL|20250115093000||ORU^R01|<control id>|P|2.5
//	PID|1||12345||DOE^JOHN||19850615|M|||123 Main St
//	OBR|1||<control id>|RESULTS^Laboratory Results^L
//	OBX|1|NM|OBS001^Blood Glucose^L||95|mg/dL|70-100|N|||F
//
// [Build] chains all three for callers that only need the wire text.
//
// Segments are joined with a single newline and the text carries no
// trailing newline. One OBX segment is emitted per observation, numbered
// from 1 in input order.
package hl7
