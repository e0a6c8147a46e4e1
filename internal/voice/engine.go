package voice

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"demoforge/internal/demo"
)

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Request is one synthesis call.
type Request struct {
	Text    string
	Voice   string
	Locale  string
	Sample  string
	Speed   float64
	OutPath string
}

// Synthesizer writes narration audio for a single request.
type Synthesizer interface {
	Name() string
	Binary() string
	// Extension is the audio file suffix the engine produces, including the dot.
	Extension() string
	Synthesize(ctx context.Context, req Request) error
}

type cliEngine struct {
	name   string
	binary string
	ext    string
	run    Runner
	args   func(req Request) ([]string, func(), error)
}

func (e *cliEngine) Name() string      { return e.name }
func (e *cliEngine) Binary() string    { return e.binary }
func (e *cliEngine) Extension() string { return e.ext }

func (e *cliEngine) Synthesize(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("%s: empty narration", e.name)
	}
	args, cleanup, err := e.args(req)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	output, err := e.run(ctx, e.binary, args...)
	if err != nil {
		return fmt.Errorf("%s: %w: %s", e.name, err, strings.TrimSpace(string(output)))
	}
	return demo.VerifyFiles(req.OutPath)
}

// NewEdge returns the edge-tts CLI engine.
func NewEdge(binary string, run Runner) Synthesizer {
	return &cliEngine{
		name:   EngineEdge,
		binary: binary,
		ext:    ".mp3",
		run:    orExec(run),
		args: func(req Request) ([]string, func(), error) {
			return []string{
				"--voice", req.Voice,
				"--rate", edgeRate(req.Speed),
				"--text", req.Text,
				"--write-media", req.OutPath,
			}, nil, nil
		},
	}
}

// NewKokoro returns the kokoro-tts CLI engine. The CLI reads narration from
// a text file, so one is written next to the output.
func NewKokoro(binary string, run Runner) Synthesizer {
	return &cliEngine{
		name:   EngineKokoro,
		binary: binary,
		ext:    ".wav",
		run:    orExec(run),
		args: func(req Request) ([]string, func(), error) {
			textPath := strings.TrimSuffix(req.OutPath, ".wav") + ".txt"
			if err := os.WriteFile(textPath, []byte(req.Text), 0o644); err != nil {
				return nil, nil, fmt.Errorf("kokoro: write narration: %w", err)
			}
			lang := "en-us"
			if strings.EqualFold(req.Locale, "en-GB") {
				lang = "en-gb"
			}
			return []string{
				textPath, req.OutPath,
				"--voice", req.Voice,
				"--speed", formatSpeed(req.Speed),
				"--lang", lang,
			}, func() { _ = os.Remove(textPath) }, nil
		},
	}
}

// NewPocket returns the pocket-tts CLI engine, which clones the voice in
// req.Sample.
func NewPocket(binary string, run Runner) Synthesizer {
	return &cliEngine{
		name:   EnginePocket,
		binary: binary,
		ext:    ".wav",
		run:    orExec(run),
		args: func(req Request) ([]string, func(), error) {
			if _, err := os.Stat(req.Sample); err != nil {
				return nil, nil, fmt.Errorf("pocket: voice sample: %w", err)
			}
			return []string{
				"generate",
				"--text", req.Text,
				"--voice", req.Sample,
				"--output-path", req.OutPath,
			}, nil, nil
		},
	}
}

func orExec(run Runner) Runner {
	if run == nil {
		return execRunner
	}
	return run
}

// edgeRate converts a speed multiplier to edge-tts's signed percentage.
func edgeRate(speed float64) string {
	if speed <= 0 {
		speed = 1
	}
	return fmt.Sprintf("%+d%%", int((speed-1)*100))
}

func formatSpeed(speed float64) string {
	if speed <= 0 {
		speed = 1
	}
	return strconv.FormatFloat(speed, 'f', 2, 64)
}
