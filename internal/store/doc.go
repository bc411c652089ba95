// Package store provides the SQLite-backed run ledger.
//
// A ledger file describes one invocation of `twinshot run`. It holds:
//   - Runs: one row per executed scenario (hosts, start/finish, outcome)
//   - Steps: every step the executor finished, per pass, with its duration
//   - Comparisons: every capture judged on the test pass
//   - Profiles: accumulated phase totals in milliseconds
//
// The ledger never accumulates history: Create removes any previous file
// before opening. Rows are ordered by an explicit seq column, never by
// timestamps.
//
// # File Format
//
// The file uses the rollback journal so a closed ledger is a single file.
// PRAGMA user_version holds LedgerVersion; Open refuses any other non-zero
// version rather than guessing at an older layout.
package store
