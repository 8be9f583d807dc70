// Package handlers holds the request handlers the server exposes: echo,
// user-agent and file storage.
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/freekieb7/httpd/filesystem"
	"github.com/freekieb7/httpd/http"
)

const (
	EchoPrefix      = "/echo/"
	UserAgentPrefix = "/user-agent"
	FilesPrefix     = "/files/"
)

// Register installs every route on router, serving files from fs.
func Register(router *http.Router, fs filesystem.Filesystem) {
	files := NewFiles(fs)

	router.GET(UserAgentPrefix, UserAgent)
	router.GET(EchoPrefix, Echo)
	router.POST(FilesPrefix, files.Handle)
	router.GET(FilesPrefix, files.Handle)
	router.PUT(FilesPrefix, files.Handle)
	router.DELETE(FilesPrefix, files.Handle)
}

// Echo answers GET /echo/{text} with text.
func Echo(ctx context.Context, req *http.Request) (*http.Response, error) {
	text := strings.TrimPrefix(req.Path, EchoPrefix)

	res, err := negotiateGzip(req, http.NewResponse(req.Version, http.StatusOK), "text/plain", []byte(text))
	if err != nil {
		return nil, fmt.Errorf("compress echo body: %w", err)
	}
	return res, nil
}

// UserAgent reports the client's User-Agent header back to it.
func UserAgent(ctx context.Context, req *http.Request) (*http.Response, error) {
	userAgent, found := req.Headers.Get(http.HeaderUserAgent)
	if !found {
		userAgent = "Unknown"
	}

	return http.NewResponse(req.Version, http.StatusOK).WithText("Your User-Agent is: " + userAgent), nil
}
