package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/freekieb7/httpd/test"
)

func newTestServer() *Server {
	srv := NewServer("test", nil)
	srv.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	srv.Router.GET("/echo/", func(ctx context.Context, req *Request) (*Response, error) {
		return NewResponse(req.Version, StatusOK).WithText(strings.TrimPrefix(req.Path, "/echo/")), nil
	})
	srv.Router.POST("/body", func(ctx context.Context, req *Request) (*Response, error) {
		return NewResponse(req.Version, StatusCreated).WithText(string(req.Body)), nil
	})
	srv.Router.GET("/panic", func(ctx context.Context, req *Request) (*Response, error) {
		panic("handler exploded")
	})
	srv.Router.GET("/error", func(ctx context.Context, req *Request) (*Response, error) {
		return nil, errors.New("storage unavailable")
	})
	srv.Router.GET("/nil", func(ctx context.Context, req *Request) (*Response, error) {
		return nil, nil
	})

	return srv
}

// startServer serves srv on a loopback port and returns its address and the
// eventual result of Serve.
func startServer(t *testing.T, srv *Server) (string, <-chan error) {
	t.Helper()

	listener, err := srv.Listen(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return listener.Addr().String(), serveErr
}

func TestServeConnKeepAlive(t *testing.T) {
	srv := newTestServer()
	client := test.Pipe(t, srv.ServeConn)

	res := client.Do(t, "GET /echo/one HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "OK", res.Reason)
	assert.Equal(t, "one", string(res.Body))
	assert.Equal(t, "keep-alive", res.Header("Connection"))
	assert.Equal(t, "text/plain", res.Header("Content-Type"))

	res = client.Do(t, "POST /body HTTP/1.1\r\nContent-Length: 4\r\n\r\ntwo!")
	assert.Equal(t, 201, res.Status)
	assert.Equal(t, "two!", string(res.Body))

	res = client.Do(t, "GET /missing HTTP/1.1\r\n\r\n")
	assert.Equal(t, 404, res.Status)
	assert.Equal(t, "404 Not Found", string(res.Body))
}

func TestServeConnPipelined(t *testing.T) {
	srv := newTestServer()
	client := test.Pipe(t, srv.ServeConn)

	go client.Conn.Write([]byte("GET /echo/a HTTP/1.1\r\n\r\nGET /echo/b HTTP/1.1\r\n\r\n"))

	assert.Equal(t, "a", string(client.Read(t).Body))
	assert.Equal(t, "b", string(client.Read(t).Body))
}

func TestServeConnClose(t *testing.T) {
	for _, value := range []string{"close", "Close", "CLOSE"} {
		t.Run(value, func(t *testing.T) {
			srv := newTestServer()
			client := test.Pipe(t, srv.ServeConn)

			res := client.Do(t, "GET /echo/bye HTTP/1.1\r\nConnection: "+value+"\r\n\r\n")
			assert.Equal(t, 200, res.Status)
			assert.Equal(t, "bye", string(res.Body))

			client.ExpectClosed(t)
		})
	}
}

func TestServeConnCloseIgnoresFollowingRequest(t *testing.T) {
	srv := newTestServer()
	client := test.Pipe(t, srv.ServeConn)

	res := client.Do(t, "GET /echo/last HTTP/1.1\r\nConnection: close\r\n\r\n"+
		"GET /echo/ignored HTTP/1.1\r\n\r\n")
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "last", string(res.Body))

	client.ExpectClosed(t)
}

func TestServeConnHandlerFailures(t *testing.T) {
	for _, path := range []string{"/panic", "/error", "/nil"} {
		t.Run(path, func(t *testing.T) {
			srv := newTestServer()
			client := test.Pipe(t, srv.ServeConn)

			res := client.Do(t, "GET "+path+" HTTP/1.1\r\n\r\n")
			assert.Equal(t, 500, res.Status)
			assert.Equal(t, "Internal Server Error", string(res.Body))

			res = client.Do(t, "GET /echo/still-here HTTP/1.1\r\n\r\n")
			assert.Equal(t, 200, res.Status)
			assert.Equal(t, "still-here", string(res.Body))
		})
	}
}

func TestServeConnUnreadableRequest(t *testing.T) {
	tests := map[string]string{
		"malformed request line": "GARBAGE\r\n\r\n",
		"bad content-length":     "POST /body HTTP/1.1\r\nContent-Length: nope\r\n\r\n",
		"empty line":             "\r\n",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer()
			client := test.Pipe(t, srv.ServeConn)

			client.Send(t, raw)
			client.ExpectClosed(t)
		})
	}
}

func TestServeConnIdleTimeout(t *testing.T) {
	srv := newTestServer()
	srv.IdleTimeout = 50 * time.Millisecond
	client := test.Pipe(t, srv.ServeConn)

	res := client.Do(t, "GET /echo/x HTTP/1.1\r\n\r\n")
	assert.Equal(t, 200, res.Status)

	client.ExpectClosed(t)
}

func TestServerServeAndShutdown(t *testing.T) {
	srv := newTestServer()
	addr, serveErr := startServer(t, srv)

	client := test.Dial(t, addr)
	res := client.Do(t, "GET /echo/over-tcp HTTP/1.1\r\nHost: "+addr+"\r\n\r\n")
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "over-tcp", string(res.Body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.ErrorIs(t, <-serveErr, ErrServerClosed)

	// the idle keep-alive connection is closed by shutdown
	client.ExpectClosed(t)
}

func TestServerShutdownWaitsForExchange(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	srv := newTestServer()
	srv.Router.GET("/slow", func(ctx context.Context, req *Request) (*Response, error) {
		close(entered)
		<-release
		return NewResponse(req.Version, StatusOK).WithText("done"), nil
	})
	addr, serveErr := startServer(t, srv)

	client := test.Dial(t, addr)
	client.Send(t, "GET /slow HTTP/1.1\r\n\r\n")
	<-entered

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(ctx)
	}()

	assert.ErrorIs(t, <-serveErr, ErrServerClosed)
	close(release)

	res := client.Read(t)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "done", string(res.Body))
	client.ExpectClosed(t)

	require.NoError(t, <-shutdownErr)
}

// waitActive blocks until srv has a connection reading or serving a request.
func waitActive(t *testing.T, srv *Server) {
	t.Helper()

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()

		for c := range srv.conns {
			if !c.idle {
				return true
			}
		}
		return false
	}, 5*time.Second, time.Millisecond)
}

func TestServerShutdownFinishesPartialRequest(t *testing.T) {
	srv := newTestServer()
	addr, serveErr := startServer(t, srv)

	client := test.Dial(t, addr)
	client.Send(t, "POST /body HTTP/1.1\r\nContent-Length: 4\r\n\r\nab")
	waitActive(t, srv)

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(ctx)
	}()
	assert.ErrorIs(t, <-serveErr, ErrServerClosed)

	client.Send(t, "cd")
	res := client.Read(t)
	assert.Equal(t, 201, res.Status)
	assert.Equal(t, "abcd", string(res.Body))
	client.ExpectClosed(t)

	require.NoError(t, <-shutdownErr)
}

func TestServerShutdownDeadline(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	srv := newTestServer()
	srv.Router.GET("/stuck", func(ctx context.Context, req *Request) (*Response, error) {
		close(entered)
		<-release
		return NewResponse(req.Version, StatusOK), nil
	})
	addr, _ := startServer(t, srv)

	client := test.Dial(t, addr)
	client.Send(t, "GET /stuck HTTP/1.1\r\n\r\n")
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, srv.Shutdown(ctx), context.DeadlineExceeded)

	client.ExpectClosed(t)
}

func TestServerServeAfterShutdown(t *testing.T) {
	srv := newTestServer()
	require.NoError(t, srv.Shutdown(context.Background()))

	listener, err := srv.Listen(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(listener), ErrServerClosed)
}

func TestServerConcurrentClients(t *testing.T) {
	srv := newTestServer()
	srv.Workers = 4
	srv.Backlog = 4
	addr, _ := startServer(t, srv)

	client := &nethttp.Client{
		Transport: &nethttp.Transport{DisableKeepAlives: true},
		Timeout:   5 * time.Second,
	}

	const clients = 16
	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()

			want := fmt.Sprintf("client-%d", i)
			res, err := client.Get("http://" + addr + "/echo/" + want)
			if err != nil {
				errs <- err
				return
			}
			defer res.Body.Close()

			body, err := io.ReadAll(res.Body)
			if err != nil {
				errs <- err
				return
			}
			if string(body) != want {
				errs <- fmt.Errorf("got %q, want %q", body, want)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestServerNetHTTPClient(t *testing.T) {
	srv := newTestServer()
	addr, _ := startServer(t, srv)

	transport := otelhttp.NewTransport(nethttp.DefaultTransport.(*nethttp.Transport).Clone())
	client := &nethttp.Client{Transport: transport, Timeout: 5 * time.Second}
	defer client.CloseIdleConnections()

	for _, word := range []string{"first", "second"} {
		res, err := client.Get("http://" + addr + "/echo/" + word)
		require.NoError(t, err)

		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, nethttp.StatusOK, res.StatusCode)
		assert.Equal(t, word, string(body))
	}

	req, err := nethttp.NewRequest(nethttp.MethodPost, "http://"+addr+"/body", strings.NewReader("payload"))
	require.NoError(t, err)
	res, err := client.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, nethttp.StatusCreated, res.StatusCode)
	assert.Equal(t, "payload", string(body))
}
