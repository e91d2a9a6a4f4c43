package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Job is one unit of batch work, typically the evaluation of a single
// policy against an observation.
type Job func(ctx context.Context) error

// RunBatch fans jobs out over a bounded set of workers and waits for every
// job to finish. One job's failure never cancels the others; all failures
// are collected and returned in job order with nil entries removed. A
// panicking job is recovered and reported as an error so the batch always
// completes.
func RunBatch(ctx context.Context, numWorkers int, jobs []Job) []error {
	if len(jobs) == 0 {
		return nil
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}

	jobChan := make(chan int)
	results := make([]error, len(jobs))

	var wg sync.WaitGroup
	for w := range numWorkers {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobChan {
				results[idx] = safeExecution(ctx, jobs[idx], workerID)
			}
		}(w + 1)
	}

	for idx := range jobs {
		jobChan <- idx
	}
	close(jobChan)
	wg.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func safeExecution(ctx context.Context, job Job, workerID int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic recovered in batch job", "worker_id", workerID, "panic", r)
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return job(ctx)
}
