// Package state keeps per-user conversation state in memory.
// Sessions are process-local and are lost on restart.
package state
