// Package retry runs an operation again after a delay when it fails.
//
// Fixed(n, d) builds a config of n attempts with the same delay d, used by the
// publisher restart loop. Config also supports exponential delay with jitter.
//
// Wrap an error with NonRetryable to stop immediately:
//
//	err := retry.Do(ctx, retry.Fixed(3, 5*time.Second), func() error {
//	    if err := p.processQueue(ctx); errors.IsFatal(err) {
//	        return retry.NonRetryable(err)
//	    }
//	    ...
//	})
//
// Wait is the cancellable sleep used by the long-running polling and
// reconnect loops.
package retry
