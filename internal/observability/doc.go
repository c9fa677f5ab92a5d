// Package observability provides structured logging and decision counters
// for fetchguard.
//
// This package implements:
//   - zap logger construction from configuration (json or console)
//   - In-process counters of isolation decisions, labelled by rule
package observability
