package http

import (
	"strings"
)

type Request struct {
	Method  string
	Path    string
	Version string
	Headers Headers

	Body []byte
}

// Header returns the value of the named header, or "" when absent.
func (req *Request) Header(name string) string {
	v, _ := req.Headers.Get(name)
	return v
}

// WantsClose reports whether the client asked for the connection to be
// closed after this exchange.
func (req *Request) WantsClose() bool {
	v, found := req.Headers.Lookup(HeaderConnection)
	return found && strings.EqualFold(strings.TrimSpace(v), ConnectionClose)
}

// AcceptsEncoding reports whether coding is listed in Accept-Encoding,
// ignoring quality parameters.
func (req *Request) AcceptsEncoding(coding string) bool {
	v, found := req.Headers.Lookup(HeaderAcceptEncoding)
	if !found {
		return false
	}
	for _, part := range strings.Split(v, ",") {
		name, _, _ := strings.Cut(part, ";")
		if strings.EqualFold(strings.TrimSpace(name), coding) {
			return true
		}
	}
	return false
}
