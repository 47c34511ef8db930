package parallel

import "sync"

// ForEach runs fn once per item across a bounded set of workers and
// blocks until every invocation has returned. Each analysis stage gets
// its own short-lived pool so stages never share a queue.
func ForEach(workers int, items []string, fn func(item string)) error {
	pool, err := NewWorkerPool(workers)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, item := range items {
		item := item
		wg.Add(1)
		if !pool.Submit(func() {
			defer wg.Done()
			fn(item)
		}) {
			wg.Done()
		}
	}
	wg.Wait()
	pool.Close()
	return nil
}
