package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/freekieb7/httpd/filesystem"
	"github.com/freekieb7/httpd/http"
)

const contentTypeOctetStream = "application/octet-stream"

// Files serves /files/{name} out of a filesystem: GET reads, POST creates,
// PUT creates or overwrites and DELETE removes.
type Files struct {
	fs filesystem.Filesystem
}

func NewFiles(fs filesystem.Filesystem) *Files {
	return &Files{fs: fs}
}

func (files *Files) Handle(ctx context.Context, req *http.Request) (*http.Response, error) {
	name := strings.TrimPrefix(req.Path, FilesPrefix)
	name = strings.TrimPrefix(name, "/")

	switch req.Method {
	case http.MethodGet:
		return files.get(req, name)
	case http.MethodPost:
		return files.create(req, name)
	case http.MethodPut:
		return files.put(req, name)
	case http.MethodDelete:
		return files.delete(req, name)
	default:
		return http.NotFound(req), nil
	}
}

func (files *Files) get(req *http.Request, name string) (*http.Response, error) {
	data, err := files.fs.ReadFile(name)
	if err != nil {
		if isMissing(err) {
			return http.NotFound(req), nil
		}
		return nil, fmt.Errorf("read file %q: %w", name, err)
	}

	res, err := negotiateGzip(req, http.NewResponse(req.Version, http.StatusOK), contentTypeOctetStream, data)
	if err != nil {
		return nil, fmt.Errorf("compress file %q: %w", name, err)
	}
	return res, nil
}

func (files *Files) create(req *http.Request, name string) (*http.Response, error) {
	err := files.fs.CreateFile(name, req.Body)
	switch {
	case err == nil:
		return http.NewResponse(req.Version, http.StatusCreated).WithText("File created: " + name), nil
	case errors.Is(err, filesystem.ErrFileAlreadyExists):
		return http.NewResponse(req.Version, http.StatusConflict).WithText("File already exists: " + name), nil
	case errors.Is(err, filesystem.ErrInvalidPath):
		return http.NotFound(req), nil
	default:
		return nil, fmt.Errorf("create file %q: %w", name, err)
	}
}

func (files *Files) put(req *http.Request, name string) (*http.Response, error) {
	exists, err := files.fs.IsFile(name)
	if err != nil {
		if errors.Is(err, filesystem.ErrInvalidPath) {
			return http.NotFound(req), nil
		}
		return nil, fmt.Errorf("stat file %q: %w", name, err)
	}
	if !exists {
		return files.create(req, name)
	}

	if err := files.fs.WriteFile(name, req.Body); err != nil {
		return nil, fmt.Errorf("write file %q: %w", name, err)
	}
	return http.NewResponse(req.Version, http.StatusOK).WithText("File updated: " + name), nil
}

func (files *Files) delete(req *http.Request, name string) (*http.Response, error) {
	if err := files.fs.DeleteFile(name); err != nil {
		if isMissing(err) {
			return http.NotFound(req), nil
		}
		return nil, fmt.Errorf("delete file %q: %w", name, err)
	}
	return http.NewResponse(req.Version, http.StatusOK).WithText("File deleted: " + name), nil
}

func isMissing(err error) bool {
	return errors.Is(err, filesystem.ErrFileNotFound) || errors.Is(err, filesystem.ErrInvalidPath)
}
