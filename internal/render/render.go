// Package render rasterizes PDF pages to PNG images for OCR.
package render

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultDPI is the rasterization resolution when none is configured.
const DefaultDPI = 300

// Document exposes a PDF's pages for rendering. Page indexes are zero-based.
type Document interface {
	PageCount() int
	PagePointSize(i int) (w, h float64)
	RenderPage(ctx context.Context, i int) (pngPath string, err error)
	Cleanup()
}

// Option configures document opening.
type Option func(*PopplerDocument)

// WithDPI sets the rasterization resolution.
func WithDPI(dpi int) Option {
	return func(d *PopplerDocument) {
		if dpi > 0 {
			d.dpi = dpi
		}
	}
}

// WithPdfToPPM sets the poppler pdftoppm binary path.
func WithPdfToPPM(path string) Option {
	return func(d *PopplerDocument) {
		if path != "" {
			d.binPath = path
		}
	}
}

// WithTempDir sets the parent directory for rendered page images.
func WithTempDir(dir string) Option {
	return func(d *PopplerDocument) {
		if dir != "" {
			d.tempParent = dir
		}
	}
}

// PopplerDocument reads PDF metadata with pdfcpu and rasterizes pages by
// shelling out to poppler's pdftoppm.
type PopplerDocument struct {
	path       string
	dims       []types.Dim
	dpi        int
	binPath    string
	tempParent string
	tempDir    string
}

// Open validates the PDF at path and reads its page geometry.
func Open(path string, opts ...Option) (*PopplerDocument, error) {
	d := &PopplerDocument{
		path:       path,
		dpi:        DefaultDPI,
		binPath:    "pdftoppm",
		tempParent: os.TempDir(),
	}
	for _, o := range opts {
		o(d)
	}

	count, err := api.PageCountFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "render: read page count of %s", path)
	}
	if count == 0 {
		return nil, eris.Errorf("render: %s has no pages", path)
	}

	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "render: read page dimensions of %s", path)
	}
	d.dims = dims
	return d, nil
}

// PageCount returns the number of pages in the document.
func (d *PopplerDocument) PageCount() int {
	return len(d.dims)
}

// PagePointSize returns the page's media box size in PDF points.
func (d *PopplerDocument) PagePointSize(i int) (float64, float64) {
	if i < 0 || i >= len(d.dims) {
		return 0, 0
	}
	return d.dims[i].Width, d.dims[i].Height
}

// RenderPage rasterizes page i to a PNG in the document's temp directory and
// returns its path. The caller owns deleting the file after use; Cleanup
// removes anything left behind.
func (d *PopplerDocument) RenderPage(ctx context.Context, i int) (string, error) {
	if i < 0 || i >= len(d.dims) {
		return "", eris.Errorf("render: page index %d out of range", i)
	}

	if d.tempDir == "" {
		dir, err := os.MkdirTemp(d.tempParent, "pdfscribe-pages-")
		if err != nil {
			return "", eris.Wrap(err, "render: create temp dir")
		}
		d.tempDir = dir
	}

	outPath := filepath.Join(d.tempDir, pageFileName(d.path, i))
	// pdftoppm appends the extension itself.
	outBase := outPath[:len(outPath)-len(".png")]

	page := fmt.Sprintf("%d", i+1)
	cmd := exec.CommandContext(ctx, d.binPath,
		"-png",
		"-r", fmt.Sprintf("%d", d.dpi),
		"-f", page,
		"-l", page,
		"-singlefile",
		d.path,
		outBase,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "render: pdftoppm failed for page %d of %s: %s", i+1, d.path, stderr.String())
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", eris.Wrapf(err, "render: pdftoppm produced no output for page %d", i+1)
	}
	return outPath, nil
}

// Cleanup removes the document's temp directory and any remaining page
// images. Best effort; failures are logged and swallowed.
func (d *PopplerDocument) Cleanup() {
	if d.tempDir == "" {
		return
	}
	if err := os.RemoveAll(d.tempDir); err != nil {
		zap.L().Warn("render: cleanup failed", zap.String("dir", d.tempDir), zap.Error(err))
	}
	d.tempDir = ""
}

// pageFileName derives a stable, collision-resistant file name for a
// rendered page from the source path and page index.
func pageFileName(path string, i int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s_%d", path, i)))
	return fmt.Sprintf("page_%d_%x.png", i, sum[:4])
}

// PixelSize converts a page's point size to pixels at the given DPI.
func PixelSize(wPts, hPts float64, dpi int) (int, int) {
	scale := float64(dpi) / 72.0
	return int(wPts*scale + 0.5), int(hPts*scale + 0.5)
}
