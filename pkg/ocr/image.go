package ocr

import (
	"context"
	"fmt"
	"os"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	log "github.com/sirupsen/logrus"
)

// Recognizer runs character recognition on an image file.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath, language string) (string, error)
}

type tesseract struct{}

func (tesseract) Recognize(ctx context.Context, imagePath, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return "", fmt.Errorf("tesseract language %q: %w", language, err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("tesseract image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr error: %w", err)
	}
	return text, nil
}

func (s *Service) extractImage(ctx context.Context, path string) (string, error) {
	prepared, cleanup, err := s.preprocess(path)
	if err != nil {
		return "", err
	}
	defer cleanup()
	return s.recognizer.Recognize(ctx, prepared, s.cfg.Language)
}

// preprocess writes a grayscale, upscaled copy of the image to a temp file.
// When the copy cannot be written the original path is used.
func (s *Service) preprocess(path string) (string, func(), error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open image: %w", err)
	}

	gray := imaging.Grayscale(img)
	if gray.Bounds().Dy() < s.cfg.MinHeight {
		gray = imaging.Resize(gray, 0, s.cfg.MinHeight*3/2, imaging.Lanczos)
	}

	// system temp directory keeps the upload directory clean
	tmpFile, err := os.CreateTemp("", "ocr-*.png")
	if err != nil {
		log.WithError(err).Warn("could not create temp file, using original image")
		return path, func() {}, nil
	}
	tmp := tmpFile.Name()
	_ = tmpFile.Close()

	if err := imaging.Save(gray, tmp); err != nil {
		_ = os.Remove(tmp)
		log.WithError(err).Warn("could not save preprocessed image, using original")
		return path, func() {}, nil
	}
	return tmp, func() { _ = os.Remove(tmp) }, nil
}
