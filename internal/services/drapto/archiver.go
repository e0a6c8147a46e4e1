package drapto

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"
)

// Progress is called with encode percentage (0..100) and a short message.
type Progress func(percent float64, message string)

// Archiver produces an AV1 copy of a video in outputDir and returns its path.
type Archiver interface {
	Archive(ctx context.Context, inputPath, outputDir string, progress Progress) (string, error)
}

// Library runs Drapto in-process.
type Library struct{}

// NewLibrary returns the in-process archiver.
func NewLibrary() *Library {
	return &Library{}
}

// Archive encodes inputPath with Drapto's responsive profile.
func (l *Library) Archive(ctx context.Context, inputPath, outputDir string, progress Progress) (string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return "", errors.New("input path required")
	}
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return "", errors.New("output directory required")
	}
	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", err
	}
	var rep draptolib.Reporter
	if progress != nil {
		rep = &reporter{progress: progress}
	}
	if _, err := encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep); err != nil {
		return "", err
	}
	return OutputPath(inputPath, outputDir), nil
}

// OutputPath is where Drapto writes the archive for inputPath.
func OutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(outputDir, stem+".mkv")
}

var _ Archiver = (*Library)(nil)
