package core

import "errors"

// Invocation failure taxonomy. Spawn-level and execution-level failures
// propagate to the caller wrapped around one of these sentinels; probe and
// parse failures are absorbed locally into negative results and never
// surface as errors.
var (
	// ErrCommandNotFound means the command could not be located on the
	// search path at all; no process was spawned.
	ErrCommandNotFound = errors.New("command not found")

	// ErrSpawnFailed means a spawn was attempted and failed for OS-level
	// reasons (permissions, resources).
	ErrSpawnFailed = errors.New("process spawn failed")

	// ErrNonZeroExit means the process ran and exited with a failure code.
	// The wrapping error carries the captured diagnostic output.
	ErrNonZeroExit = errors.New("command exited with non-zero status")

	// ErrTimeout means the invocation deadline elapsed before the process
	// exited. Distinct from ErrNonZeroExit: the process was terminated by
	// the executor, not by its own exit.
	ErrTimeout = errors.New("command timed out")
)
