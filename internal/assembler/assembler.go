package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"demoforge/internal/config"
	"demoforge/internal/demo"
	"demoforge/internal/fileutil"
	"demoforge/internal/logging"
	"demoforge/internal/media/ffprobe"
	"demoforge/internal/services"
	"demoforge/internal/services/drapto"
	"demoforge/internal/stage"
)

const stageName = "assembling"

// Runner executes ffmpeg and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Inspector inspects a rendered file.
type Inspector func(ctx context.Context, path string) (ffprobe.Result, error)

// Service implements stage.Assembler.
type Service struct {
	ffmpeg     string
	opts       renderOptions
	burnSubs   bool
	archive    bool
	archiver   drapto.Archiver
	run        Runner
	inspector  Inspector
	outputRoot string
	now        func() time.Time
	logger     *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithRunner replaces ffmpeg execution.
func WithRunner(run Runner) Option {
	return func(s *Service) {
		if run != nil {
			s.run = run
		}
	}
}

// WithInspector replaces ffprobe inspection of the final video.
func WithInspector(inspect Inspector) Option {
	return func(s *Service) {
		if inspect != nil {
			s.inspector = inspect
		}
	}
}

// WithArchiver replaces the AV1 archiver.
func WithArchiver(a drapto.Archiver) Option {
	return func(s *Service) {
		s.archiver = a
	}
}

// NewService builds the assembler from configuration.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	width, height := cfg.Dimensions()
	v := cfg.Video
	transition := v.TransitionDuration
	if v.Transition == "none" {
		transition = 0
	}
	ffprobeBinary := v.FFprobeBinary
	s := &Service{
		ffmpeg: v.FFmpegBinary,
		opts: renderOptions{
			Width:         width,
			Height:        height,
			FPS:           v.FPS,
			CRF:           v.CRF,
			KenBurns:      v.KenBurns,
			Transition:    v.Transition,
			TransitionDur: transition,
			SubtitleFont:  v.SubtitleFont,
			SubtitleSize:  v.SubtitleSize,
		},
		burnSubs: v.BurnSubtitles,
		archive:  v.ArchiveAV1,
		archiver: drapto.NewLibrary(),
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
		inspector: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffprobeBinary, path)
		},
		outputRoot: cfg.Paths.OutputDir,
		now:        time.Now,
		logger:     logging.NewComponentLogger(logger, "assembler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type clip struct {
	segmentID string
	image     string
	audio     string
	duration  float64
}

// Assemble renders one clip per segment, joins them, and inspects the result.
func (s *Service) Assemble(ctx context.Context, req stage.AssembleRequest, reporter stage.Reporter) (*demo.Video, error) {
	logger := logging.WithContext(ctx, s.logger)
	reporter = stage.OrNop(reporter)

	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}
	workDir, err := stage.WorkDir(ctx, s.outputRoot, "clips")
	if err != nil {
		return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "prepare", "create clip dir", err)
	}
	output := req.OutputPath
	if strings.TrimSpace(output) == "" {
		output = filepath.Join(filepath.Dir(workDir), "demo.mp4")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "prepare", "create output dir", err)
	}

	narration := make([]float64, len(plan))
	for i, c := range plan {
		narration[i] = c.duration
	}
	durations := ClipDurations(narration, s.opts.TransitionDur)
	clipPaths := make([]string, len(plan))
	for i, c := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clipPaths[i] = filepath.Join(workDir, fmt.Sprintf("%02d_%s.mp4", i, c.segmentID))
		if err := s.ffmpegRun(ctx, clipArgs(c.image, c.audio, durations[i], s.opts, clipPaths[i])); err != nil {
			return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "render clip", c.segmentID, err)
		}
		reporter.Report(0.8*float64(i+1)/float64(len(plan)), "rendered clip "+c.segmentID, i+1, len(plan))
	}

	opts := s.opts
	if s.burnSubs && req.Voice != nil && req.Voice.SubtitlePath != "" {
		opts.SubtitlePath = req.Voice.SubtitlePath
	}
	partial := output + ".partial"
	if err := s.ffmpegRun(ctx, joinArgs(clipPaths, durations, opts, partial)); err != nil {
		_ = os.Remove(partial)
		return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "join clips", "ffmpeg join failed", err)
	}
	if err := fileutil.MoveFile(partial, output); err != nil {
		return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "finalize", "move output", err)
	}
	reporter.Report(0.9, "joined "+fmt.Sprint(len(plan))+" clips", len(plan), len(plan))

	video, err := s.inspect(ctx, output)
	if err != nil {
		return nil, err
	}
	if req.Voice != nil && req.Voice.SubtitlePath != "" {
		sidecar := strings.TrimSuffix(output, filepath.Ext(output)) + ".srt"
		if err := fileutil.CopyFileVerified(req.Voice.SubtitlePath, sidecar); err != nil {
			return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "finalize", "copy subtitles", err)
		}
		video.SubtitlePath = sidecar
	}

	if s.archive && s.archiver != nil {
		video.ArchivePath = s.archiveCopy(ctx, logger, output, reporter)
	}

	reporter.Report(1, "video ready", len(plan), len(plan))
	logger.Info("video assembled",
		logging.String("path", video.Path),
		logging.Float64("duration_seconds", video.Duration),
		logging.Int64("size_bytes", video.SizeBytes),
		logging.Int("clips", len(plan)),
	)
	return video, nil
}

// plan pairs every segment with its visual and narration, failing on the
// first segment that lacks either.
func (s *Service) plan(req stage.AssembleRequest) ([]clip, error) {
	segments := req.Script.Segments()
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "plan", "script has no segments", nil)
	}
	out := make([]clip, 0, len(segments))
	for _, seg := range segments {
		capture, ok := req.Captures.Artifact(seg.ID)
		if !ok {
			return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "plan", "segment "+seg.ID+" has no capture", nil)
		}
		audio, ok := req.Voice.Artifact(seg.ID)
		if !ok {
			return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "plan", "segment "+seg.ID+" has no narration audio", nil)
		}
		if err := demo.VerifyFiles(capture.Path, audio.Path); err != nil {
			return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "plan", "segment "+seg.ID+" artifact missing", err)
		}
		duration := audio.Duration
		if duration <= 0 {
			duration = seg.Duration
		}
		out = append(out, clip{segmentID: seg.ID, image: capture.Path, audio: audio.Path, duration: duration})
	}
	return out, nil
}

func (s *Service) ffmpegRun(ctx context.Context, args []string) error {
	output, err := s.run(ctx, s.ffmpeg, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w: %s", s.ffmpeg, err, lastLines(string(output), 5))
	}
	return nil
}

func (s *Service) inspect(ctx context.Context, path string) (*demo.Video, error) {
	result, err := s.inspector(ctx, path)
	if err != nil {
		return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "inspect", "inspect output", err)
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 1 {
		return nil, services.Wrap(services.ErrAssemblyFailed, stageName, "inspect",
			fmt.Sprintf("expected 1 video and 1 audio stream, found %d/%d", result.VideoStreamCount(), result.AudioStreamCount()), nil)
	}
	video := &demo.Video{
		Path:      path,
		Duration:  result.DurationSeconds(),
		SizeBytes: result.SizeBytes(),
		CreatedAt: s.now().UTC(),
	}
	if stream, ok := result.VideoStream(); ok {
		video.Width, video.Height = stream.Width, stream.Height
	}
	if video.SizeBytes == 0 {
		if info, err := os.Stat(path); err == nil {
			video.SizeBytes = info.Size()
		}
	}
	return video, nil
}

// archiveCopy encodes the AV1 archive. Failures are logged and leave the
// H.264 master as the only output.
func (s *Service) archiveCopy(ctx context.Context, logger *slog.Logger, output string, reporter stage.Reporter) string {
	dir := filepath.Join(filepath.Dir(output), "archive")
	progress := func(percent float64, message string) {
		if percent < 0 {
			logger.Debug("archive event", logging.String("message", message))
			return
		}
		reporter.Report(0.9+0.1*percent/100, message, 0, 0)
	}
	path, err := s.archiver.Archive(ctx, output, dir, progress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ""
		}
		logging.WarnWithContext(logger, "av1 archive failed", "archive_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check drapto and ffmpeg svt-av1 support"),
			logging.String(logging.FieldImpact, "only the h264 video is available"),
		)
		return ""
	}
	return path
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// HealthCheck reports whether ffmpeg is installed.
func (s *Service) HealthCheck(context.Context) stage.Health {
	if _, err := exec.LookPath(s.ffmpeg); err != nil {
		return stage.Unhealthy("assembler", fmt.Sprintf("ffmpeg %q not found", s.ffmpeg))
	}
	return stage.Healthy("assembler")
}
