package spinshell

import "context"

// Close destroys the operator and releases its resources: the shell
// context's memory reservation and the kernel device's workers.
// Closing twice is a no-op; operations on a closed operator return
// ErrClosed.
func (op *Operator) Close() error {
	if op == nil {
		return nil
	}
	if !op.closed.CompareAndSwap(false, true) {
		return nil
	}

	var firstErr error
	if err := op.shell.Destroy(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := op.dev.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	op.logger.LogClose(context.Background(), firstErr)
	return firstErr
}
