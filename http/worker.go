package http

import (
	"bufio"
	"context"
	"net"
	"sync"
)

const DefaultWorkerPoolSize = 20

// ConnFunc serves one connection using buffers owned by the calling worker.
type ConnFunc func(conn net.Conn, br *bufio.Reader, bw *bufio.Writer)

// WorkerPool runs a fixed number of workers, each serving one connection at
// a time. Connections beyond that wait in a bounded queue; when the queue is
// full Submit blocks.
type WorkerPool struct {
	Size  int
	queue chan net.Conn
	serve ConnFunc
	wg    sync.WaitGroup
	once  sync.Once
}

func NewWorkerPool(size, backlog int, serve ConnFunc) *WorkerPool {
	if size <= 0 {
		size = DefaultWorkerPoolSize
	}
	if backlog < 0 {
		backlog = 0
	}

	return &WorkerPool{
		Size:  size,
		queue: make(chan net.Conn, backlog),
		serve: serve,
	}
}

func (wp *WorkerPool) Start() {
	for range wp.Size {
		wp.wg.Add(1)
		go wp.work()
	}
}

func (wp *WorkerPool) work() {
	defer wp.wg.Done()

	br := bufio.NewReaderSize(nil, DefaultReadBufferSize)
	bw := bufio.NewWriterSize(nil, DefaultWriteBufferSize)

	for conn := range wp.queue {
		br.Reset(conn)
		bw.Reset(conn)

		wp.serve(conn, br, bw)

		br.Reset(nil)
		bw.Reset(nil)
	}
}

// Submit hands conn to the next free worker. It must not be called after
// Close; a single goroutine is expected to do both.
func (wp *WorkerPool) Submit(conn net.Conn) {
	wp.queue <- conn
}

// Close stops accepting work. Queued connections are still served.
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		close(wp.queue)
	})
}

// Wait blocks until every worker has exited or ctx is done.
func (wp *WorkerPool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
