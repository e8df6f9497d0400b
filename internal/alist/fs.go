package alist

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ListOptions tunes a directory listing. Zero values mean page 1 with 30
// entries.
type ListOptions struct {
	Password string
	Page     int
	PerPage  int
	Refresh  bool
}

type listRequest struct {
	Path     string `json:"path"`
	Password string `json:"password"`
	Page     int    `json:"page"`
	PerPage  int    `json:"per_page"`
	Refresh  bool   `json:"refresh"`
}

// ListDir returns the entry names of dir.
func (c *Client) ListDir(ctx context.Context, dir string, opts ListOptions) ([]string, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 30
	}
	var data struct {
		Content []struct {
			Name  string `json:"name"`
			IsDir bool   `json:"is_dir"`
		} `json:"content"`
	}
	err := c.call(ctx, request{
		method:   http.MethodPost,
		endpoint: "api/fs/list",
		payload: listRequest{
			Path:     dir,
			Password: opts.Password,
			Page:     opts.Page,
			PerPage:  opts.PerPage,
			Refresh:  opts.Refresh,
		},
	}, &data)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(data.Content))
	for _, entry := range data.Content {
		names = append(names, entry.Name)
	}
	return names, nil
}

// Rename gives the file or directory at fullPath the bare name newName.
func (c *Client) Rename(ctx context.Context, fullPath, newName string) error {
	if strings.ContainsRune(newName, '/') {
		return fmt.Errorf("alist rename: new name %q must not contain a path separator", newName)
	}
	return c.call(ctx, request{
		method:   http.MethodPost,
		endpoint: "api/fs/rename",
		payload:  map[string]string{"path": fullPath, "name": newName},
	}, nil)
}

// FolderExists reports whether dir exists. A "not found" answer, either as an
// envelope message or an HTTP 404, is false; other failures are errors.
func (c *Client) FolderExists(ctx context.Context, dir string) (bool, error) {
	err := c.call(ctx, request{
		method:   http.MethodPost,
		endpoint: "api/fs/dirs",
		payload:  map[string]string{"path": dir},
	}, nil)
	if err == nil {
		return true, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "not found") {
		return false, nil
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) && transportErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// CreateFolder creates dir, including missing parents.
func (c *Client) CreateFolder(ctx context.Context, dir string) error {
	return c.call(ctx, request{
		method:   http.MethodPost,
		endpoint: "api/fs/mkdir",
		payload:  map[string]string{"path": dir},
	}, nil)
}

// EnsureFolder creates dir when it does not exist yet.
func (c *Client) EnsureFolder(ctx context.Context, dir string) error {
	exists, err := c.FolderExists(ctx, dir)
	if err != nil || exists {
		return err
	}
	return c.CreateFolder(ctx, dir)
}

// Upload streams the local file at localPath into saveDir.
func (c *Client) Upload(ctx context.Context, saveDir, localPath string) error {
	absPath, err := filepath.Abs(localPath)
	if err != nil {
		return fmt.Errorf("alist upload: resolve %s: %w", localPath, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("alist upload: open %s: %w", absPath, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("alist upload: stat %s: %w", absPath, err)
	}

	name := filepath.Base(absPath)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.call(ctx, request{
		method:   http.MethodPut,
		endpoint: "api/fs/put",
		headers: map[string]string{
			"Content-Type": contentType,
			"File-Path":    escapePath(path.Join(saveDir, name)),
		},
		body:          file,
		contentLength: info.Size(),
	}, nil)
}

// escapePath percent-encodes each segment while keeping the separators.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
