package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"demoforge/internal/demo"
	"demoforge/internal/logging"
	"demoforge/internal/progress"
	"demoforge/internal/project"
	"demoforge/internal/services"
	"demoforge/internal/stage"
)

// step binds one work stage to its fingerprint inputs, its adapter call and
// the project field that holds its output.
type step struct {
	stage  project.Stage
	inputs func(st *runState) (any, error)
	exec   func(ctx context.Context, st *runState, rep stage.Reporter) (any, error)
	decode func() any
	files  func(out any) []string
	apply  func(p *project.Project, out any)
}

func newStep[T any](
	s project.Stage,
	inputs func(*runState) (any, error),
	exec func(context.Context, *runState, stage.Reporter) (*T, error),
	files func(*T) []string,
	apply func(*project.Project, *T),
) step {
	return step{
		stage:  s,
		inputs: inputs,
		exec: func(ctx context.Context, st *runState, rep stage.Reporter) (any, error) {
			out, err := exec(ctx, st, rep)
			if err != nil {
				return nil, err
			}
			if out == nil {
				return nil, fmt.Errorf("%s adapter returned no output", s)
			}
			return out, nil
		},
		decode: func() any { return new(T) },
		files: func(out any) []string {
			if files == nil {
				return nil
			}
			return files(out.(*T))
		},
		apply: func(p *project.Project, out any) { apply(p, out.(*T)) },
	}
}

func (o *Orchestrator) steps() []step {
	cfg := o.cfg
	return []step{
		newStep(project.StageAnalyzing,
			func(st *runState) (any, error) { return analyzeInputs(cfg, st.project), nil },
			func(ctx context.Context, st *runState, rep stage.Reporter) (*demo.AnalysisResult, error) {
				if o.adapters.Analyzer == nil {
					return nil, missingAdapter(project.StageAnalyzing)
				}
				return o.adapters.Analyzer.Analyze(ctx, st.project.Source(), rep)
			},
			nil,
			func(p *project.Project, out *demo.AnalysisResult) { p.Analysis = out },
		),
		newStep(project.StageScripting,
			func(st *runState) (any, error) {
				return scriptInputs(cfg, st.project, st.fingerprint(project.StageAnalyzing)), nil
			},
			func(ctx context.Context, st *runState, rep stage.Reporter) (*demo.Script, error) {
				if o.adapters.Scripter == nil {
					return nil, missingAdapter(project.StageScripting)
				}
				return o.adapters.Scripter.Script(ctx, scriptRequest(st.project), rep)
			},
			nil,
			func(p *project.Project, out *demo.Script) { p.Script = out },
		),
		newStep(project.StageCapturing,
			func(st *runState) (any, error) {
				return captureInputs(cfg, st.fingerprint(project.StageScripting)), nil
			},
			func(ctx context.Context, st *runState, rep stage.Reporter) (*demo.CaptureSet, error) {
				if o.adapters.Capturer == nil {
					return nil, missingAdapter(project.StageCapturing)
				}
				return o.adapters.Capturer.Capture(ctx, st.project.Script, rep)
			},
			func(out *demo.CaptureSet) []string {
				paths := make([]string, 0, len(out.Artifacts))
				for _, a := range out.Artifacts {
					paths = append(paths, a.Path)
				}
				return paths
			},
			func(p *project.Project, out *demo.CaptureSet) { p.Captures = out },
		),
		newStep(project.StageVoicing,
			func(st *runState) (any, error) {
				return voiceInputs(cfg, st.project, st.fingerprint(project.StageScripting)), nil
			},
			func(ctx context.Context, st *runState, rep stage.Reporter) (*demo.VoiceSet, error) {
				if o.adapters.Voicer == nil {
					return nil, missingAdapter(project.StageVoicing)
				}
				return o.adapters.Voicer.Voice(ctx, st.project.Script, voiceSettings(cfg, st.project), rep)
			},
			func(out *demo.VoiceSet) []string {
				paths := make([]string, 0, len(out.Artifacts)+1)
				for _, a := range out.Artifacts {
					paths = append(paths, a.Path)
				}
				if out.SubtitlePath != "" {
					paths = append(paths, out.SubtitlePath)
				}
				return paths
			},
			func(p *project.Project, out *demo.VoiceSet) { p.Voice = out },
		),
		newStep(project.StageAssembling,
			func(st *runState) (any, error) {
				return assembleInputs(cfg,
					st.fingerprint(project.StageCapturing),
					st.fingerprint(project.StageVoicing),
					OutputPath(cfg, st.project)), nil
			},
			func(ctx context.Context, st *runState, rep stage.Reporter) (*demo.Video, error) {
				if o.adapters.Assembler == nil {
					return nil, missingAdapter(project.StageAssembling)
				}
				return o.adapters.Assembler.Assemble(ctx, stage.AssembleRequest{
					Script:     st.project.Script,
					Captures:   st.project.Captures,
					Voice:      st.project.Voice,
					OutputPath: OutputPath(cfg, st.project),
				}, rep)
			},
			func(out *demo.Video) []string { return []string{out.Path} },
			func(p *project.Project, out *demo.Video) { p.Video = out },
		),
	}
}

func missingAdapter(s project.Stage) error {
	return services.Wrap(services.ErrConfiguration, string(s), "adapter", "no adapter configured", nil)
}

// runStep restores the stage output from the cache or runs the adapter, then
// persists the output and fingerprint on the project.
func (o *Orchestrator) runStep(ctx context.Context, st *runState, s step) error {
	ctx = services.WithStage(ctx, string(s.stage))
	logger := logging.WithContext(ctx, o.logger)
	started := time.Now()

	inputs, err := s.inputs(st)
	if err != nil {
		return services.Wrap(services.ErrValidation, string(s.stage), "inputs", "build fingerprint inputs", err)
	}
	fp, err := fingerprint(s.stage, inputs)
	if err != nil {
		return services.Wrap(services.ErrValidation, string(s.stage), "fingerprint", "hash inputs", err)
	}
	st.fps[s.stage] = fp

	out, hit := o.restore(ctx, logger, s, fp)
	if hit {
		o.publish(st, progress.Snapshot{
			Stage:    string(s.stage),
			Fraction: 1,
			Message:  fmt.Sprintf("%s restored from cache", s.stage),
			CacheHit: true,
		})
		logger.Info("stage restored from cache",
			logging.String(logging.FieldEventType, "stage_cache_hit"),
			logging.String("fingerprint", shortFP(fp)),
		)
	} else {
		logger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.String("fingerprint", shortFP(fp)),
		)
		o.publish(st, progress.Snapshot{Stage: string(s.stage), Message: fmt.Sprintf("%s started", s.stage)})
		out, err = o.invoke(ctx, st, logger, s)
		if err != nil {
			return err
		}
		if err := o.cache.Set(ctx, string(s.stage), fp, out, 0); err != nil {
			logging.WarnWithContext(logger, "stage output not cached", "cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check free space and permissions on cache_dir"),
				logging.String(logging.FieldImpact, "the next run repeats this stage"),
			)
		}
	}

	last := st.lastSnapshot()
	p, err := o.store.Mutate(context.WithoutCancel(ctx), st.run.projectID, func(p *project.Project) error {
		s.apply(p, out)
		p.SetFingerprint(s.stage, fp)
		p.Progress = &last
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist %s output: %w", s.stage, err)
	}
	st.project = p

	if !hit {
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("stage_duration", time.Since(started)),
		)
	}
	return nil
}

// restore loads a cached output whose files are still on disk. Entries whose
// files were removed are invalidated.
func (o *Orchestrator) restore(ctx context.Context, logger *slog.Logger, s step, fp string) (any, bool) {
	out := s.decode()
	hit, err := o.cache.Get(ctx, string(s.stage), fp, out)
	if err != nil {
		logging.WarnWithContext(logger, "cache lookup failed", "cache_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on cache_dir"),
			logging.String(logging.FieldImpact, "stage runs without the cache"),
		)
		return nil, false
	}
	if !hit {
		return nil, false
	}
	if err := demo.VerifyFiles(s.files(out)...); err != nil {
		logger.Info("cached artifacts missing, running stage",
			logging.Args(append(logging.DecisionAttrs("cache_restore", "miss", err.Error()),
				logging.String("fingerprint", shortFP(fp)))...)...)
		_ = o.cache.Invalidate(string(s.stage), fp)
		return nil, false
	}
	return out, true
}

type stepResult struct {
	out any
	err error
}

// invoke runs the adapter under the stage timeout. An adapter that ignores
// its context is abandoned when the deadline passes.
func (o *Orchestrator) invoke(ctx context.Context, st *runState, logger *slog.Logger, s step) (any, error) {
	timeout := o.timeouts[s.stage]
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// An abandoned adapter may keep reporting after invoke returns and the
	// run has moved on or finished; those reports are discarded.
	var finished atomic.Bool
	defer finished.Store(true)

	sampler := logging.NewProgressSampler(0.25)
	var samplerMu sync.Mutex
	reporter := stage.ReporterFunc(func(fraction float64, message string, current, total int) {
		if finished.Load() {
			return
		}
		o.publish(st, progress.Snapshot{
			Stage:    string(s.stage),
			Fraction: fraction,
			Message:  message,
			Current:  current,
			Total:    total,
		})
		samplerMu.Lock()
		emit := sampler.ShouldLog(fraction, string(s.stage))
		samplerMu.Unlock()
		if emit {
			logger.Debug("stage progress",
				logging.Float64("fraction", fraction),
				logging.String("message", message),
				logging.Int("current", current),
				logging.Int("total", total),
			)
		}
	})

	done := make(chan stepResult, 1)
	go func() {
		out, err := s.exec(stageCtx, st, reporter)
		done <- stepResult{out: out, err: err}
	}()

	var res stepResult
	select {
	case res = <-done:
	case <-stageCtx.Done():
		select {
		case res = <-done:
		default:
			res = stepResult{err: stageCtx.Err()}
		}
	}
	if res.err == nil {
		return res.out, nil
	}
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, services.Wrap(services.ErrStageTimeout, string(s.stage), "run",
			fmt.Sprintf("exceeded %s", timeout), res.err)
	}
	if ctx.Err() != nil && errors.Is(res.err, context.Canceled) {
		return nil, services.Wrap(services.ErrCancelled, string(s.stage), "run", project.InterruptedMessage, res.err)
	}
	return nil, res.err
}

func shortFP(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
