package handlers

import (
	"bytes"
	"compress/gzip"

	"github.com/freekieb7/httpd/http"
)

const encodingGzip = "gzip"

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// negotiateGzip compresses the body of res when req accepts gzip.
func negotiateGzip(req *http.Request, res *http.Response, contentType string, body []byte) (*http.Response, error) {
	if !req.AcceptsEncoding(encodingGzip) {
		return res.WithBody(contentType, body), nil
	}

	compressed, err := gzipCompress(body)
	if err != nil {
		return nil, err
	}
	return res.WithBody(contentType, compressed).WithHeader(http.HeaderContentEncoding, encodingGzip), nil
}
