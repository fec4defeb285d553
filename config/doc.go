// Package config assembles the platform configuration from layered
// sources: compiled defaults, then JSON or YAML files, then INFERGATE_*
// environment overrides, last writer wins. Durations in files are
// human-readable strings ("30s", "2m", "14d") normalized before
// unmarshaling.
//
// Section structs for the server, bridge and monitor live with the
// packages they configure; this package owns the composition, the
// platform identity, and cross-section validation.
package config
