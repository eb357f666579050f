// Package ocr recognizes text from rendered page images.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/scribelab/pdfscribe/internal/config"
	"github.com/scribelab/pdfscribe/internal/language"
	"github.com/scribelab/pdfscribe/pkg/googleauth"
	"github.com/scribelab/pdfscribe/pkg/vision"
)

// Engine recognizes text from a single page image.
type Engine interface {
	Recognize(ctx context.Context, imagePath string, lang language.Entry) (string, error)
}

// New creates an Engine based on config.
func New(cfg config.OCRConfig) (Engine, error) {
	switch cfg.Engine {
	case "tesseract", "":
		return NewTesseract(cfg.TessdataDir, cfg.TesseractPath), nil
	case "vision":
		var opts []vision.Option
		switch {
		case cfg.VisionAPIKey != "":
			opts = append(opts, vision.WithAPIKey(cfg.VisionAPIKey))
		case cfg.ServiceAccountFile != "":
			opts = append(opts, vision.WithTokenSource(googleauth.NewTokenSource(cfg.ServiceAccountFile)))
		default:
			return nil, eris.New("ocr: vision engine requires vision_api_key or service_account_file")
		}
		client, err := vision.NewClient(opts...)
		if err != nil {
			return nil, eris.Wrap(err, "ocr: create vision client")
		}
		return NewVision(client), nil
	default:
		return nil, eris.Errorf("ocr: unknown engine %q", cfg.Engine)
	}
}
