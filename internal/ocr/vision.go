package ocr

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/scribelab/pdfscribe/internal/language"
	"github.com/scribelab/pdfscribe/pkg/vision"
)

// Vision recognizes text via the Google Cloud Vision API.
type Vision struct {
	client vision.Client
}

// NewVision creates a Vision engine wrapping the given API client.
func NewVision(client vision.Client) *Vision {
	return &Vision{client: client}
}

// Recognize uploads the image for DOCUMENT_TEXT_DETECTION with the entry's
// language hint. A page with no detectable text yields "" without error.
func (v *Vision) Recognize(ctx context.Context, imagePath string, lang language.Entry) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: read image %s", imagePath)
	}
	text, err := v.client.Annotate(ctx, data, lang.VisionCode)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: annotate %s", imagePath)
	}
	return text, nil
}
