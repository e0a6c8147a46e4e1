package capturer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"demoforge/internal/demo"
)

// Browser captures a single page to a PNG file.
type Browser interface {
	Screenshot(ctx context.Context, pageURL, outPath string) error
}

// Chromium drives a headless Chromium or Chrome binary.
type Chromium struct {
	Binary  string
	Width   int
	Height  int
	Timeout time.Duration
}

// NewChromium returns a browser backend for binary.
func NewChromium(binary string, width, height int, timeout time.Duration) *Chromium {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Chromium{Binary: binary, Width: width, Height: height, Timeout: timeout}
}

// Screenshot loads pageURL at the configured viewport and writes outPath.
func (c *Chromium) Screenshot(ctx context.Context, pageURL, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	budget := c.Timeout / 2
	if budget > 10*time.Second {
		budget = 10 * time.Second
	}
	args := []string{
		"--headless=new",
		"--disable-gpu",
		"--no-sandbox",
		"--hide-scrollbars",
		"--mute-audio",
		"--no-first-run",
		"--force-device-scale-factor=1",
		fmt.Sprintf("--window-size=%d,%d", c.Width, c.Height),
		fmt.Sprintf("--virtual-time-budget=%d", budget.Milliseconds()),
		"--screenshot=" + outPath,
		pageURL,
	}
	_ = os.Remove(outPath)
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("screenshot %s: timed out after %s", pageURL, c.Timeout)
		}
		return fmt.Errorf("screenshot %s: %w: %s", pageURL, err, lastLine(stderr.String()))
	}
	if err := demo.VerifyFiles(outPath); err != nil {
		return fmt.Errorf("screenshot %s: %w", pageURL, err)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
