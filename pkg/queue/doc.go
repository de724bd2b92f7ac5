// Package queue provides the unbounded FIFO that joins each pipeline's
// producer to its consumer.
//
// Push never blocks and never drops, so a slow consumer makes the queue grow
// without bound. Pop blocks until an item arrives, its context is cancelled or
// the queue is closed and drained:
//
//	q, _ := queue.New[gira.Descriptor](queue.WithMetrics(registry, "descriptors"))
//
//	go func() {
//	    for _, d := range page {
//	        _ = q.Push(d)
//	    }
//	}()
//
//	for {
//	    d, err := q.Pop(ctx)
//	    if err != nil {
//	        return err // context cancelled or queue closed
//	    }
//	    handle(d)
//	}
//
// The queue is safe for any number of producers; the pipelines use one
// producer and one consumer each.
package queue
