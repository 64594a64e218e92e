package dagforge

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/dagforge/dagforge-go/dag"
	"github.com/dagforge/dagforge-go/routes"
)

const defaultExportFilename = "pipeline_export.zip"

// ExportRequest asks the backend to package a pipeline (source code,
// specification, supporting files) into a downloadable zip archive.
type ExportRequest struct {
	Code string    `json:"dag_code"`
	Spec *dag.Spec `json:"dag_spec,omitempty"`
}

func (r ExportRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return errors.New("dagforge: dag code is required")
	}
	return nil
}

// ExportArchive is a downloaded pipeline package. Filename comes from
// the server's Content-Disposition header when present.
type ExportArchive struct {
	Filename string
	Data     []byte
}

// Files lists the entry names inside the archive in archive order.
func (a *ExportArchive) Files() ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(a.Data), int64(len(a.Data)))
	if err != nil {
		return nil, fmt.Errorf("dagforge: open export archive: %w", err)
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// Open returns a reader for a single archive entry.
func (a *ExportArchive) Open(name string) (io.ReadCloser, error) {
	zr, err := zip.NewReader(bytes.NewReader(a.Data), int64(len(a.Data)))
	if err != nil {
		return nil, fmt.Errorf("dagforge: open export archive: %w", err)
	}
	return zr.Open(name)
}

// WriteFile saves the archive to path. An empty path uses the
// server-provided filename in the current directory.
func (a *ExportArchive) WriteFile(path string) error {
	if path == "" {
		path = a.Filename
		if path == "" {
			path = defaultExportFilename
		}
	}
	return os.WriteFile(path, a.Data, 0o644)
}

// Export downloads the packaged pipeline as a zip archive.
func (c *PipelinesClient) Export(ctx context.Context, req ExportRequest, options ...CallOption) (*ExportArchive, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := buildCallOptions(options)
	if opts.timeout != nil && *opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *opts.timeout)
		defer cancel()
	}
	httpReq, err := c.client.newJSONRequest(ctx, http.MethodPost, routes.PipelineExport, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/zip")
	resp, err := c.client.sendWithOptions(httpReq, opts)
	if err != nil {
		c.logFailure(ctx, "export", err)
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, TransportError{Message: "read export archive", Cause: err}
	}
	c.client.telemetry.metric(ctx, "sdk_export_archive_bytes", float64(len(data)), nil)
	return &ExportArchive{
		Filename: exportFilename(resp.Header.Get("Content-Disposition")),
		Data:     data,
	}, nil
}

// exportFilename extracts the filename parameter from a
// Content-Disposition header, falling back to a stable default.
func exportFilename(disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	return defaultExportFilename
}
