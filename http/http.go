package http

import (
	"strings"
)

const (
	DefaultReadBufferSize  = 4096 // 4kB
	DefaultWriteBufferSize = 4096 // 4kB
	DefaultMaxLineBytes    = 8 * 1024
	DefaultMaxBodyBytes    = 2 * 1024 * 1024 // 2MB
	MaxRequestHeaders      = 255
)

const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodDelete  = "DELETE"
	MethodOptions = "OPTIONS"
)

const (
	Version11 = "HTTP/1.1"

	HeaderAllow           = "Allow"
	HeaderConnection      = "Connection"
	HeaderContentEncoding = "Content-Encoding"
	HeaderContentLength   = "Content-Length"
	HeaderContentType     = "Content-Type"
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderUserAgent       = "User-Agent"

	ConnectionClose     = "close"
	ConnectionKeepAlive = "keep-alive"

	crlf = "\r\n"
)

// Header is a single name/value pair as it appears on the wire.
type Header struct {
	Name  string
	Value string
}

// Headers keeps header fields in insertion order. Names are compared
// case-sensitively; setting an existing name overwrites its value in place.
type Headers []Header

func (h Headers) Get(name string) (string, bool) {
	for i := range h {
		if h[i].Name == name {
			return h[i].Value, true
		}
	}
	return "", false
}

// Lookup is Get with a case-insensitive name match. It is used for the
// framing headers the server itself interprets.
func (h Headers) Lookup(name string) (string, bool) {
	for i := range h {
		if strings.EqualFold(h[i].Name, name) {
			return h[i].Value, true
		}
	}
	return "", false
}

func (h *Headers) Set(name, value string) {
	for i := range *h {
		if (*h)[i].Name == name {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, Header{Name: name, Value: value})
}

func (h *Headers) Del(name string) {
	out := (*h)[:0]
	for _, field := range *h {
		if field.Name != name {
			out = append(out, field)
		}
	}
	*h = out
}

func (h Headers) Has(name string) bool {
	_, found := h.Get(name)
	return found
}
