// Package policy provides the Fetch Metadata request-isolation engine for fetchguard.
//
// This package implements:
//   - The immutable Policy value and its Options builder
//   - The permission evaluator (Evaluate / Explain) over the
//     Sec-Fetch-Site, Sec-Fetch-Mode and Sec-Fetch-Dest request headers
//   - The 403 rejection responder and its Renderer collaborator
//   - The process-wide Store of policy snapshots with per-route overrides
//
// Evaluation is pure: it reads the request view and the policy and never
// touches shared mutable state, so it is safe to call from any number of
// request goroutines. Requests without a Sec-Fetch-Site header are allowed
// (old clients), unknown header values never match an allow rule.
package policy
