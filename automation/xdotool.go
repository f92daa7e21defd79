// Package automation implements the input injector on top of xdotool.
// Each primitive maps to one or a few subprocess invocations with a
// per-call timeout; nothing here knows about plans or validation.

package automation

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"deskhand/command"
)

// DefaultCallTimeout bounds a single xdotool invocation.
const DefaultCallTimeout = 10 * time.Second

// XdoInjector drives the X display through xdotool. Screenshots go through
// ImageMagick's import.
type XdoInjector struct {
	callTimeout time.Duration
	// runner executes one external command; swapped out in tests.
	runner func(ctx context.Context, name string, args ...string) error
	log    zerolog.Logger
}

// NewXdoInjector creates an xdotool-backed injector.
func NewXdoInjector(log zerolog.Logger) *XdoInjector {
	return &XdoInjector{
		callTimeout: DefaultCallTimeout,
		runner:      runCommand,
		log:         log,
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, firstLine(out))
	}
	return nil
}

func firstLine(out []byte) string {
	for i, b := range out {
		if b == '\n' {
			return string(out[:i])
		}
	}
	return string(out)
}

func (x *XdoInjector) xdotool(ctx context.Context, args ...string) error {
	callCtx, cancel := context.WithTimeout(ctx, x.callTimeout)
	defer cancel()

	x.log.Debug().Strs("args", args).Msg("xdotool")
	return x.runner(callCtx, "xdotool", args...)
}

// Move positions the pointer at absolute screen coordinates.
func (x *XdoInjector) Move(ctx context.Context, px, py int) error {
	return x.xdotool(ctx, "mousemove", strconv.Itoa(px), strconv.Itoa(py))
}

// Click presses a mouse button, moving first when a location is given.
// Button 0 means left.
func (x *XdoInjector) Click(ctx context.Context, px, py, button int, double, hasLocation bool) error {
	if hasLocation {
		if err := x.Move(ctx, px, py); err != nil {
			return err
		}
	}
	if button == 0 {
		button = 1
	}
	if double {
		return x.xdotool(ctx, "click", "--repeat", "2", strconv.Itoa(button))
	}
	return x.xdotool(ctx, "click", strconv.Itoa(button))
}

// Type enters text with a small inter-key delay so applications keep up.
func (x *XdoInjector) Type(ctx context.Context, text string) error {
	return x.xdotool(ctx, "type", "--delay", "50", "--", text)
}

// Key presses a key or combo by xdotool key name (Return, super,
// ctrl+shift+t).
func (x *XdoInjector) Key(ctx context.Context, key string) error {
	return x.xdotool(ctx, "key", key)
}

// Drag presses, interpolates the pointer from start to end over the
// duration, and releases. Ten interpolation steps per second.
func (x *XdoInjector) Drag(ctx context.Context, x1, y1, x2, y2 int, duration float64) error {
	if err := x.Move(ctx, x1, y1); err != nil {
		return err
	}
	if err := x.xdotool(ctx, "mousedown", "1"); err != nil {
		return err
	}

	steps := int(duration * 10)
	if steps < 1 {
		steps = 1
	}
	stepPause := time.Duration(duration * float64(time.Second) / float64(steps))

	for i := 1; i < steps; i++ {
		px := x1 + (x2-x1)*i/steps
		py := y1 + (y2-y1)*i/steps
		if err := x.Move(ctx, px, py); err != nil {
			x.xdotool(ctx, "mouseup", "1")
			return err
		}
		if err := pause(ctx, stepPause); err != nil {
			x.xdotool(ctx, "mouseup", "1")
			return err
		}
	}

	if err := x.Move(ctx, x2, y2); err != nil {
		x.xdotool(ctx, "mouseup", "1")
		return err
	}
	return x.xdotool(ctx, "mouseup", "1")
}

// Scroll moves to the location and spins the wheel. Positive amounts
// scroll down (button 5), negative up (button 4).
func (x *XdoInjector) Scroll(ctx context.Context, px, py, amount int) error {
	if err := x.Move(ctx, px, py); err != nil {
		return err
	}
	button := "4"
	if amount > 0 {
		button = "5"
	} else {
		amount = -amount
	}
	if amount == 0 {
		return nil
	}
	return x.xdotool(ctx, "click", "--repeat", strconv.Itoa(amount), button)
}

// Screenshot captures the root window via ImageMagick.
func (x *XdoInjector) Screenshot(ctx context.Context, filename string) error {
	callCtx, cancel := context.WithTimeout(ctx, x.callTimeout)
	defer cancel()
	return x.runner(callCtx, "import", "-window", "root", filename)
}

// WaitForWindow polls for a window whose title matches, twice a second,
// until found or the timeout elapses.
func (x *XdoInjector) WaitForWindow(ctx context.Context, title string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := x.xdotool(ctx, "search", "--name", title)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("window %q did not appear within %s", title, timeout)
		}
		if err := pause(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ command.Injector = (*XdoInjector)(nil)
