package http

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
)

// Reader turns a byte stream into a sequence of requests. It is not safe for
// concurrent use; one Reader belongs to one connection.
type Reader struct {
	br *bufio.Reader

	MaxLineBytes int
	MaxHeaders   int
	MaxBodyBytes int64
}

func NewReader(src io.Reader) *Reader {
	br, ok := src.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(src, DefaultReadBufferSize)
	}

	return &Reader{
		br:           br,
		MaxLineBytes: DefaultMaxLineBytes,
		MaxHeaders:   MaxRequestHeaders,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// ReadLine returns the next line without its terminator. A line ends at LF;
// a CR directly before it is part of the terminator and is consumed too.
// A final unterminated line is returned as is, the call after it yields io.EOF.
func (r *Reader) ReadLine() (string, error) {
	var line []byte
	for {
		chunk, err := r.br.ReadSlice('\n')
		line = append(line, chunk...)

		if r.MaxLineBytes > 0 && len(line) > r.MaxLineBytes+len(crlf) {
			return "", ErrLineTooLong
		}

		switch {
		case err == nil:
			return string(trimEOL(line)), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return string(trimEOL(line)), nil
		default:
			return "", err
		}
	}
}

// ReadBytes reads exactly n bytes, retrying short reads. If the stream ends
// first, the bytes read so far are returned without an error. The buffer
// grows with the data received, not with n.
func (r *Reader) ReadBytes(n int64) ([]byte, error) {
	if n <= 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	buf.Grow(int(min(n, DefaultReadBufferSize)))

	if _, err := io.CopyN(&buf, r.br, n); err != nil && !errors.Is(err, io.EOF) {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

// Peek blocks until the first byte of the next request is buffered.
func (r *Reader) Peek() error {
	_, err := r.br.Peek(1)
	return err
}

// Next parses one request. It returns io.EOF when the stream ends cleanly,
// that is before any byte of a new request or on a bare empty line.
func (r *Reader) Next() (*Request, error) {
	requestLine, err := r.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, r.fail("read request line", err)
	}
	if requestLine == "" {
		return nil, io.EOF
	}

	parts := strings.Split(requestLine, " ")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 3 {
		return nil, &ParseError{Line: requestLine, Err: ErrMalformedRequestLine}
	}

	req := Request{
		Method:  parts[0],
		Path:    parts[1],
		Version: parts[2],
	}

	req.Headers, err = r.readHeaders()
	if err != nil {
		return nil, err
	}

	length, err := r.contentLength(req.Headers)
	if err != nil {
		return nil, err
	}

	req.Body, err = r.ReadBytes(length)
	if err != nil {
		return nil, r.fail("read body", err)
	}

	return &req, nil
}

func (r *Reader) readHeaders() (Headers, error) {
	headers := make(Headers, 0, 8)
	for {
		line, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return headers, nil
			}
			return nil, r.fail("read header", err)
		}
		if line == "" {
			return headers, nil
		}

		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		headers.Set(strings.TrimSpace(name), strings.TrimSpace(value))

		if r.MaxHeaders > 0 && len(headers) > r.MaxHeaders {
			return nil, &ParseError{Err: ErrTooManyHeaders}
		}
	}
}

func (r *Reader) contentLength(headers Headers) (int64, error) {
	v, found := headers.Lookup(HeaderContentLength)
	if !found {
		return 0, nil
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, &ParseError{Line: v, Err: ErrInvalidContentLength}
	}
	if (r.MaxBodyBytes > 0 && n > r.MaxBodyBytes) || uint64(n) > math.MaxInt {
		return 0, &ParseError{Line: v, Err: ErrBodyTooLarge}
	}

	return n, nil
}

func (r *Reader) fail(op string, err error) error {
	if errors.Is(err, ErrLineTooLong) {
		return &ParseError{Err: err}
	}
	return &TransportError{Op: op, Err: err}
}

func trimEOL(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
