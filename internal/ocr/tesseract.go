package ocr

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scribelab/pdfscribe/internal/language"
)

// Tesseract recognizes text with a local libtesseract via gosseract.
type Tesseract struct {
	tessdataDir string
}

// NewTesseract creates a Tesseract engine. When tessdataDir is empty the
// data directory is discovered relative to the tesseract binary (binPath, or
// whatever PATH resolves) and falls back to gosseract's built-in default.
func NewTesseract(tessdataDir, binPath string) *Tesseract {
	if tessdataDir == "" {
		tessdataDir = discoverTessdata(binPath)
	}
	return &Tesseract{tessdataDir: tessdataDir}
}

// Recognize runs OCR on the image at imagePath. A fresh client is created
// per call; gosseract clients are not safe for concurrent reuse.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string, lang language.Entry) (string, error) {
	select {
	case <-ctx.Done():
		return "", eris.Wrap(ctx.Err(), "ocr: tesseract")
	default:
	}

	c := gosseract.NewClient()
	defer c.Close() //nolint:errcheck

	if t.tessdataDir != "" {
		if err := c.SetTessdataPrefix(t.tessdataDir); err != nil {
			return "", eris.Wrap(err, "ocr: set tessdata prefix")
		}
	}
	if err := c.SetLanguage(lang.TesseractCode); err != nil {
		return "", eris.Wrapf(err, "ocr: set language %s", lang.TesseractCode)
	}
	if err := c.SetImage(imagePath); err != nil {
		return "", eris.Wrapf(err, "ocr: set image %s", imagePath)
	}

	text, err := c.Text()
	if err != nil {
		return "", eris.Wrapf(err, "ocr: recognize %s", imagePath)
	}
	return text, nil
}

// discoverTessdata locates a tessdata directory near the tesseract binary:
// ../share/tessdata relative to the binary's directory, then tessdata
// alongside it, then the distro layout under /usr/share/tesseract-ocr.
// Returns "" when nothing is found.
func discoverTessdata(binPath string) string {
	if binPath == "" {
		binPath = "tesseract"
	}
	if resolved, err := exec.LookPath(binPath); err == nil {
		binDir := filepath.Dir(resolved)
		for _, dir := range []string{
			filepath.Join(binDir, "..", "share", "tessdata"),
			filepath.Join(binDir, "tessdata"),
		} {
			if isDir(dir) {
				return dir
			}
		}
	}

	matches, _ := filepath.Glob("/usr/share/tesseract-ocr/*/tessdata")
	for _, dir := range matches {
		if isDir(dir) {
			return dir
		}
	}

	zap.L().Debug("ocr: no tessdata directory found, using library default")
	return ""
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
