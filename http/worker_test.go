package http

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolServesQueuedConns(t *testing.T) {
	var (
		mu      sync.Mutex
		readers = map[*bufio.Reader]int{}
	)

	pool := NewWorkerPool(1, 4, func(conn net.Conn, br *bufio.Reader, bw *bufio.Writer) {
		defer conn.Close()

		mu.Lock()
		readers[br]++
		mu.Unlock()

		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		bw.WriteString("echo " + line)
		bw.Flush()
	})
	pool.Start()

	const conns = 3
	clients := make([]net.Conn, conns)
	for i := range conns {
		server, client := net.Pipe()
		clients[i] = client
		pool.Submit(server)
	}

	for _, client := range clients {
		require.NoError(t, client.SetDeadline(time.Now().Add(5*time.Second)))
		_, err := client.Write([]byte("ping\n"))
		require.NoError(t, err)

		got, err := io.ReadAll(client)
		require.NoError(t, err)
		assert.Equal(t, "echo ping\n", string(got))
		client.Close()
	}

	pool.Close()
	require.NoError(t, pool.Wait(context.Background()))

	// one worker, one set of buffers
	assert.Len(t, readers, 1)
	for _, served := range readers {
		assert.Equal(t, conns, served)
	}
}

func TestWorkerPoolWaitDeadline(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	pool := NewWorkerPool(1, 0, func(conn net.Conn, br *bufio.Reader, bw *bufio.Writer) {
		close(started)
		<-release
		conn.Close()
	})
	pool.Start()

	server, client := net.Pipe()
	defer client.Close()
	pool.Submit(server)
	<-started
	pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, pool.Wait(context.Background()))
}

func TestNewWorkerPoolDefaults(t *testing.T) {
	pool := NewWorkerPool(0, -1, nil)
	assert.Equal(t, DefaultWorkerPoolSize, pool.Size)
	assert.Equal(t, 0, cap(pool.queue))

	pool.Close()
	pool.Close()
}
