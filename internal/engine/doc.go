// Package engine implements the twinshot dual-pass capture engine.
//
// A Harness records an ordered queue of steps (goto, navigate, screenshot)
// through a fluent API and replays that queue twice: once against the base
// host and once against the test host. Screenshot steps write a base
// artifact on the first pass and a test artifact on the second; only the
// second pass diffs the two and fails when the difference exceeds the
// step's threshold.
//
// ARCHITECTURE:
//
// Strictly Sequential Execution:
// A single goroutine drives both passes. This ensures:
// - The Test pass only starts after every Base artifact exists
// - Steps run in recorded order on both passes
// - Settle delays are reproducible
//
// Execution Flow:
// 1. Recording methods append Steps to the Queue
// 2. Execute() runs the queue for PassBase, then PassTest
// 3. Each Step is routed to runGoto, runNavigate or runScreenshot
// 4. On PassTest, runScreenshot hands the artifacts to the Comparator
// 5. On success the Queue is drained; on failure it is left untouched
//
// The browser and the pixel differ are collaborators behind the Driver and
// Differ interfaces. Time is behind Clock so tests can replace every settle
// delay with a manual clock.
//
// Failures are never retried. Whether to retry a failed queue or throw it
// away with Discard() is the caller's decision.
package engine
