package http

import (
	"bufio"
	"strconv"
)

type Response struct {
	Version string
	Status  uint16
	Reason  string
	Headers Headers
	Body    []byte
}

// NewResponse starts a response for a request of the given protocol version.
// The With* methods are meant for building it; once returned from a handler
// the response is only read.
func NewResponse(version string, status uint16) *Response {
	if version == "" {
		version = Version11
	}

	return &Response{
		Version: version,
		Status:  status,
		Reason:  StatusText(status),
		Headers: make(Headers, 0, 4),
	}
}

func (res *Response) WithStatus(status uint16) *Response {
	res.Status = status
	res.Reason = StatusText(status)
	return res
}

func (res *Response) WithHeader(name, value string) *Response {
	res.Headers.Set(name, value)
	return res
}

func (res *Response) WithBody(contentType string, body []byte) *Response {
	res.Headers.Set(HeaderContentType, contentType)
	res.Headers.Set(HeaderContentLength, strconv.Itoa(len(body)))
	res.Body = body
	return res
}

func (res *Response) WithText(payload string) *Response {
	return res.WithBody("text/plain", []byte(payload))
}

// Write serializes the response and flushes bw. A missing Connection header
// is sent as keep-alive and a missing Content-Length is derived from the body,
// without touching res itself.
func (res *Response) Write(bw *bufio.Writer) error {
	version := res.Version
	if version == "" {
		version = Version11
	}
	reason := res.Reason
	if reason == "" {
		reason = StatusText(res.Status)
	}
	withBody := bodyAllowed(res.Status)

	var num [20]byte
	bw.WriteString(version)
	bw.WriteByte(' ')
	bw.Write(strconv.AppendUint(num[:0], uint64(res.Status), 10))
	bw.WriteByte(' ')
	bw.WriteString(reason)
	bw.WriteString(crlf)

	for _, header := range res.Headers {
		writeHeader(bw, header.Name, header.Value)
	}
	if _, found := res.Headers.Lookup(HeaderConnection); !found {
		writeHeader(bw, HeaderConnection, ConnectionKeepAlive)
	}
	if _, found := res.Headers.Lookup(HeaderContentLength); !found && withBody {
		writeHeader(bw, HeaderContentLength, strconv.Itoa(len(res.Body)))
	}
	bw.WriteString(crlf)

	if withBody && len(res.Body) > 0 {
		bw.Write(res.Body)
	}

	if err := bw.Flush(); err != nil {
		return &TransportError{Op: "write response", Err: err}
	}
	return nil
}

func writeHeader(bw *bufio.Writer, name, value string) {
	bw.WriteString(name)
	bw.WriteString(": ")
	bw.WriteString(value)
	bw.WriteString(crlf)
}

// NotFound is the response for a request no route or resource matches.
func NotFound(req *Request) *Response {
	return NewResponse(req.Version, StatusNotFound).WithText("404 Not Found")
}

func InternalServerError(version, message string) *Response {
	return NewResponse(version, StatusInternalServerError).WithText(message)
}
