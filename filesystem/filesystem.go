package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrFileNotFound      = fmt.Errorf("filesystem: file not found")
	ErrFileAlreadyExists = fmt.Errorf("filesystem: file already exists")
	ErrInvalidPath       = fmt.Errorf("filesystem: invalid path")
)

// Filesystem stores files addressed by slash separated names relative to a
// root directory. Names that would escape the root are rejected with
// ErrInvalidPath.
type Filesystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, content []byte) error
	CreateFile(name string, content []byte) error
	DeleteFile(name string) error

	FileExists(name string) (bool, error)
	IsFile(name string) (bool, error)

	Root() string
}

type localFileSystem struct {
	root string
}

func NewLocalFileSystem(root string) (Filesystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	return &localFileSystem{root: abs}, nil
}

func (filesystem *localFileSystem) Root() string {
	return filesystem.root
}

// resolve maps name onto the root directory.
func (filesystem *localFileSystem) resolve(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.ContainsRune(name, 0) {
		return "", ErrInvalidPath
	}

	path := filepath.Join(filesystem.root, filepath.FromSlash(name))
	rel, err := filepath.Rel(filesystem.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}

	return path, nil
}

// CreateFile writes content to a new file and fails with ErrFileAlreadyExists
// when name is taken. Creation and the existence check are one atomic step.
func (filesystem *localFileSystem) CreateFile(name string, content []byte) error {
	path, err := filesystem.resolve(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrFileAlreadyExists
		}
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Error("closing created file error", "error", closeErr)
		}
	}()

	if _, err := file.Write(content); err != nil {
		return err
	}

	return file.Sync()
}

func (filesystem *localFileSystem) WriteFile(name string, content []byte) error {
	path, err := filesystem.resolve(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return err
	}

	return os.WriteFile(path, content, 0644)
}

func (filesystem *localFileSystem) ReadFile(name string) ([]byte, error) {
	isFile, err := filesystem.IsFile(name)
	if err != nil {
		return nil, err
	}
	if !isFile {
		return nil, ErrFileNotFound
	}

	path, _ := filesystem.resolve(name)
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	return content, err
}

func (filesystem *localFileSystem) DeleteFile(name string) error {
	isFile, err := filesystem.IsFile(name)
	if err != nil {
		return err
	}
	if !isFile {
		return ErrFileNotFound
	}

	path, _ := filesystem.resolve(name)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrFileNotFound
		}
		return err
	}

	return nil
}

func (filesystem *localFileSystem) FileExists(name string) (bool, error) {
	path, err := filesystem.resolve(name)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// IsFile reports whether name exists and is a regular file.
func (filesystem *localFileSystem) IsFile(name string) (bool, error) {
	path, err := filesystem.resolve(name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
