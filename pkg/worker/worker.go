package worker

import (
	"context"
	"sync"

	"github.com/nimasrn/sms-verify/pkg/logger"
)

type WorkerHandler = func(workerIndex int, job interface{})

type WorkerManager struct {
	bufferSize     int
	jobChannel     chan interface{}
	numberOfWorker int
	do             WorkerHandler
	done           chan struct{}
	closeOnce      sync.Once
	waiter         *sync.WaitGroup
}

// NewWorkerManager
// is a job manager based on go routines. Define the number of internal
// workers, and start publishing jobs using Enqueue. Jobs are distributed
// among the pool until the context passed to Start is cancelled or Exit is called.
// The job channel is never closed here since it may be shared with other producers.
func NewWorkerManager(bufferSize, numberOfWorkers int, jobChannel chan interface{}) *WorkerManager {
	if jobChannel == nil {
		jobChannel = make(chan interface{}, bufferSize)
	}
	if numberOfWorkers <= 0 {
		numberOfWorkers = 1
	}

	return &WorkerManager{
		bufferSize:     bufferSize,
		numberOfWorker: numberOfWorkers,
		jobChannel:     jobChannel,
		done:           make(chan struct{}),
		waiter:         &sync.WaitGroup{},
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	if w.jobChannel == nil {
		return 0
	}
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue publishes a job onto the channel. It gives up when ctx is done
// or the manager has exited and reports whether the job was accepted.
func (w *WorkerManager) Enqueue(ctx context.Context, val interface{}) bool {
	select {
	case w.jobChannel <- val:
		return true
	case <-ctx.Done():
		return false
	case <-w.done:
		return false
	}
}

// Start
// starts off as many workers as defined by numberOfWorker
// and blocks until all of them returned.
func (w *WorkerManager) Start(ctx context.Context) {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobChannel:
					w.do(index, job)
				case <-ctx.Done():
					return
				case <-w.done:
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()
	logger.Info("[worker] all workers returned", "workers", w.numberOfWorker)
}

// Exit stops every worker once its current job finishes.
func (w *WorkerManager) Exit() {
	w.closeOnce.Do(func() {
		logger.Info("[worker] exit requested")
		close(w.done)
	})
}
