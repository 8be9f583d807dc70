// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package http

const (
	StatusContinue uint16 = 100 // RFC 7231, 6.2.1

	StatusOK        uint16 = 200 // RFC 7231, 6.3.1
	StatusCreated   uint16 = 201 // RFC 7231, 6.3.2
	StatusAccepted  uint16 = 202 // RFC 7231, 6.3.3
	StatusNoContent uint16 = 204 // RFC 7231, 6.3.5

	StatusNotModified uint16 = 304 // RFC 7232, 4.1

	StatusBadRequest            uint16 = 400 // RFC 7231, 6.5.1
	StatusForbidden             uint16 = 403 // RFC 7231, 6.5.3
	StatusNotFound              uint16 = 404 // RFC 7231, 6.5.4
	StatusMethodNotAllowed      uint16 = 405 // RFC 7231, 6.5.5
	StatusRequestTimeout        uint16 = 408 // RFC 7231, 6.5.7
	StatusConflict              uint16 = 409 // RFC 7231, 6.5.8
	StatusLengthRequired        uint16 = 411 // RFC 7231, 6.5.10
	StatusRequestEntityTooLarge uint16 = 413 // RFC 7231, 6.5.11

	StatusInternalServerError     uint16 = 500 // RFC 7231, 6.6.1
	StatusNotImplemented          uint16 = 501 // RFC 7231, 6.6.2
	StatusServiceUnavailable      uint16 = 503 // RFC 7231, 6.6.4
	StatusHTTPVersionNotSupported uint16 = 505 // RFC 7231, 6.6.6
)

var (
	unknownStatusCode = "Unknown Status Code"

	statusMessages = map[uint16]string{
		StatusContinue: "Continue",

		StatusOK:        "OK",
		StatusCreated:   "Created",
		StatusAccepted:  "Accepted",
		StatusNoContent: "No Content",

		StatusNotModified: "Not Modified",

		StatusBadRequest:            "Bad Request",
		StatusForbidden:             "Forbidden",
		StatusNotFound:              "Not Found",
		StatusMethodNotAllowed:      "Method Not Allowed",
		StatusRequestTimeout:        "Request Timeout",
		StatusConflict:              "Conflict",
		StatusLengthRequired:        "Length Required",
		StatusRequestEntityTooLarge: "Request Entity Too Large",

		StatusInternalServerError:     "Internal Server Error",
		StatusNotImplemented:          "Not Implemented",
		StatusServiceUnavailable:      "Service Unavailable",
		StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
	}
)

// StatusText returns the reason phrase for status, or "Unknown Status Code".
func StatusText(status uint16) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return unknownStatusCode
}

// bodyAllowed reports whether a response with the given status may carry a body.
func bodyAllowed(status uint16) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == StatusNoContent, status == StatusNotModified:
		return false
	}
	return true
}
