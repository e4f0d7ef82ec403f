// Package queue is a small durable task queue: named queues, workers that
// claim tasks under a lock, retries with a dead-letter table, and pluggable
// storage (in-memory, bbolt, or any implementation of Storage such as the
// PostgreSQL one in internal/store).
//
// # Acknowledgement modes
//
// AckAuto marks a task completed the moment it is claimed, before its handler
// runs. A handler error is logged and the task is not redelivered.
//
// AckManual keeps the task locked while the handler runs. Success completes it,
// failure schedules a retry until MaxRetries is reached and then moves it to
// the dead-letter table. A worker that dies mid-task leaves a lock that expires
// after the lock timeout, after which the task is claimable again.
//
// # Usage
//
//	storage := queue.NewMemoryStorage()
//	svc, err := queue.NewService(storage, queue.WithServiceAckMode(queue.AckManual))
//	if err != nil {
//		return err
//	}
//
//	type Ping struct{ Text string }
//
//	err = svc.Consume("pings", queue.NewTaskHandler(func(ctx context.Context, p Ping) error {
//		log.Println(p.Text)
//		return nil
//	}))
//
//	eg.Go(svc.Run(ctx))
//	_ = svc.Enqueue(ctx, Ping{Text: "hi"}, queue.WithQueue("pings"))
package queue
