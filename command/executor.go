package command

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Injector performs the low-level input events. Implementations hide the
// display-server tooling behind simple primitives.
type Injector interface {
	Move(ctx context.Context, x, y int) error
	Click(ctx context.Context, x, y int, button int, double bool, hasLocation bool) error
	Type(ctx context.Context, text string) error
	Key(ctx context.Context, key string) error
	Drag(ctx context.Context, x1, y1, x2, y2 int, duration float64) error
	Scroll(ctx context.Context, x, y, amount int) error
	Screenshot(ctx context.Context, filename string) error
	WaitForWindow(ctx context.Context, title string, timeout time.Duration) error
}

// Report summarizes one execution.
type Report struct {
	Executed int `json:"executed"`
	Skipped  int `json:"skipped"`
	// FailedStep is the 1-based index of the step that failed, 0 when all
	// steps ran.
	FailedStep int           `json:"failed_step,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Executor runs validated plans against an Injector. The first failing
// step halts the run; nothing after it executes.
type Executor struct {
	injector Injector
	log      zerolog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(injector Injector, log zerolog.Logger) *Executor {
	return &Executor{injector: injector, log: log}
}

// Run executes the plan's steps in order. Errored plans are rejected
// without touching the injector; empty plans succeed immediately. Steps
// with no executable mapping (var, loop, ifexists) are counted as skipped.
func (e *Executor) Run(ctx context.Context, p *Plan) (Report, error) {
	start := time.Now()
	var report Report

	if p == nil || p.IsError() {
		reason := "nil plan"
		if p != nil {
			reason = p.Err
		}
		return report, fmt.Errorf("refusing errored plan: %s", reason)
	}

	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			report.FailedStep = i + 1
			report.Elapsed = time.Since(start)
			return report, err
		}

		ran, err := e.runStep(ctx, step)
		if err != nil {
			report.FailedStep = i + 1
			report.Elapsed = time.Since(start)
			e.log.Error().Err(err).Int("step", i+1).Str("op", string(step.Op)).Msg("step failed, halting plan")
			return report, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		if ran {
			report.Executed++
		} else {
			report.Skipped++
			e.log.Debug().Int("step", i+1).Str("op", string(step.Op)).Msg("step skipped")
		}
	}

	report.Elapsed = time.Since(start)
	e.log.Info().
		Int("executed", report.Executed).
		Int("skipped", report.Skipped).
		Dur("elapsed", report.Elapsed).
		Msg("plan complete")
	return report, nil
}

// runStep dispatches one step. The bool reports whether the step actually
// ran, as opposed to being skipped.
func (e *Executor) runStep(ctx context.Context, s Step) (bool, error) {
	switch s.Op {
	case OpPointer:
		return true, e.injector.Move(ctx, s.X, s.Y)
	case OpClick:
		return true, e.injector.Click(ctx, s.X, s.Y, s.Button, s.Double, s.HasLocation)
	case OpType:
		return true, e.injector.Type(ctx, s.Text)
	case OpKey:
		return true, e.injector.Key(ctx, s.Key)
	case OpKeyCombo:
		return true, e.injector.Key(ctx, s.Combo)
	case OpWait:
		return true, sleep(ctx, time.Duration(s.Seconds*float64(time.Second)))
	case OpDrag, OpSwipe:
		return true, e.injector.Drag(ctx, s.X, s.Y, s.X2, s.Y2, s.Duration)
	case OpScroll:
		return true, e.injector.Scroll(ctx, s.X, s.Y, s.Amount)
	case OpMulticlick:
		return true, e.multiclick(ctx, s)
	case OpWaitFor:
		return true, e.injector.WaitForWindow(ctx, s.Window, time.Duration(s.Timeout)*time.Second)
	case OpScreenshot:
		return true, e.injector.Screenshot(ctx, s.Filename)
	default:
		return false, nil
	}
}

func (e *Executor) multiclick(ctx context.Context, s Step) error {
	count := s.Count
	if count <= 0 {
		count = 1
	}
	for i := 0; i < count; i++ {
		if err := e.injector.Click(ctx, s.X, s.Y, 1, false, true); err != nil {
			return err
		}
		if i < count-1 && s.Delay > 0 {
			if err := sleep(ctx, time.Duration(s.Delay*float64(time.Second))); err != nil {
				return err
			}
		}
	}
	return nil
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
