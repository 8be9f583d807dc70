// Package test has helpers for talking raw HTTP/1.1 to a server in tests.
package test

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const ioTimeout = 5 * time.Second

type Response struct {
	Version string
	Status  int
	Reason  string
	Headers [][2]string
	Body    []byte
}

// Header returns the first value for name, matched case-insensitively.
func (res *Response) Header(name string) string {
	for _, h := range res.Headers {
		if strings.EqualFold(h[0], name) {
			return h[1]
		}
	}
	return ""
}

func (res *Response) HasHeader(name string) bool {
	for _, h := range res.Headers {
		if strings.EqualFold(h[0], name) {
			return true
		}
	}
	return false
}

// Client writes requests byte for byte and parses what comes back.
type Client struct {
	Conn net.Conn
	br   *bufio.Reader
}

func NewClient(t testing.TB, conn net.Conn) *Client {
	t.Helper()
	t.Cleanup(func() { conn.Close() })

	return &Client{Conn: conn, br: bufio.NewReader(conn)}
}

func Dial(t testing.TB, addr string) *Client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, ioTimeout)
	require.NoError(t, err)
	return NewClient(t, conn)
}

// Pipe runs serve on one end of an in-memory connection and returns a client
// for the other end.
func Pipe(t testing.TB, serve func(net.Conn)) *Client {
	t.Helper()

	server, client := net.Pipe()
	go serve(server)
	return NewClient(t, client)
}

func (c *Client) Send(t testing.TB, raw string) {
	t.Helper()

	require.NoError(t, c.Conn.SetWriteDeadline(time.Now().Add(ioTimeout)))
	_, err := io.WriteString(c.Conn, raw)
	require.NoError(t, err)
}

// Read parses one response, framing the body by Content-Length.
func (c *Client) Read(t testing.TB) *Response {
	t.Helper()

	require.NoError(t, c.Conn.SetReadDeadline(time.Now().Add(ioTimeout)))

	statusLine := c.readLine(t)
	version, rest, found := strings.Cut(statusLine, " ")
	require.True(t, found, "malformed status line %q", statusLine)
	code, reason, _ := strings.Cut(rest, " ")
	status, err := strconv.Atoi(code)
	require.NoError(t, err, "malformed status line %q", statusLine)

	res := &Response{Version: version, Status: status, Reason: reason}
	for {
		line := c.readLine(t)
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		require.True(t, found, "malformed header %q", line)
		res.Headers = append(res.Headers, [2]string{name, strings.TrimSpace(value)})
	}

	if v := res.Header("Content-Length"); v != "" {
		n, err := strconv.Atoi(v)
		require.NoError(t, err)
		res.Body = make([]byte, n)
		_, err = io.ReadFull(c.br, res.Body)
		require.NoError(t, err)
	}

	return res
}

func (c *Client) Do(t testing.TB, raw string) *Response {
	t.Helper()

	c.Send(t, raw)
	return c.Read(t)
}

// ExpectClosed asserts that the server closes the connection without sending
// anything more.
func (c *Client) ExpectClosed(t testing.TB) {
	t.Helper()

	require.NoError(t, c.Conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	b, err := c.br.ReadByte()
	require.Error(t, err, "unexpected byte %q", b)
	require.True(t, errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed), "expected close, got %v", err)
}

func (c *Client) readLine(t testing.TB) string {
	t.Helper()

	line, err := c.br.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\r\n")
}
