// Package flock provides cross-platform file locking utilities.
//
// The session store uses an advisory lock on a .lock file to enforce the
// single-writer-per-session rule across processes. Locks are acquired
// non-blocking; a held lock surfaces immediately as an error rather than
// waiting.
package flock
