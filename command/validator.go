package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// safetyBlacklist lists substrings that must never be typed or assigned.
// Matching is a hard gate; no model opinion can override it.
var safetyBlacklist = []string{
	"rm -rf",
	"mkfs",
	"dd if=",
	":(){ :|:& };:",
	"chmod 777 /",
	"> /dev/sda",
}

// Judge gives an opinion on a plan. A nil error approves; a non-nil error
// rejects with the reason.
type Judge interface {
	Review(ctx context.Context, p *Plan) error
}

// Validator gates plans before execution. Safety and logic judges are hard
// gates; the efficiency judge is advisory and only logs.
type Validator struct {
	safety     Judge
	logic      Judge
	efficiency Judge
	log        zerolog.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithSafetyJudge replaces the heuristic safety judge.
func WithSafetyJudge(j Judge) ValidatorOption {
	return func(v *Validator) { v.safety = j }
}

// WithEfficiencyJudge sets the advisory efficiency judge.
func WithEfficiencyJudge(j Judge) ValidatorOption {
	return func(v *Validator) { v.efficiency = j }
}

// NewValidator creates a validator with heuristic judges.
func NewValidator(log zerolog.Logger, opts ...ValidatorOption) *Validator {
	v := &Validator{
		safety: HeuristicSafetyJudge{},
		logic:  heuristicLogicJudge{},
		log:    log,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Approve runs safety, then logic, then efficiency. The first hard-gate
// rejection short-circuits. An errored plan never approves.
func (v *Validator) Approve(ctx context.Context, p *Plan) error {
	if p == nil {
		return fmt.Errorf("nil plan")
	}
	if p.IsError() {
		return fmt.Errorf("plan carries error: %s", p.Err)
	}

	if err := v.safety.Review(ctx, p); err != nil {
		v.log.Warn().Err(err).Msg("safety validation failed")
		return fmt.Errorf("safety: %w", err)
	}
	if err := v.logic.Review(ctx, p); err != nil {
		v.log.Warn().Err(err).Msg("logic validation failed")
		return fmt.Errorf("logic: %w", err)
	}
	if v.efficiency != nil {
		if err := v.efficiency.Review(ctx, p); err != nil {
			v.log.Info().Err(err).Msg("efficiency suggestion, plan approved anyway")
		}
	}
	return nil
}

// HeuristicSafetyJudge rejects any step whose typed or assigned text
// contains a blacklisted substring.
type HeuristicSafetyJudge struct{}

// Review checks the blacklist against type, key, keycombo, var, and
// ifexists payloads. Matching is case-insensitive.
func (HeuristicSafetyJudge) Review(_ context.Context, p *Plan) error {
	for i, s := range p.Steps {
		for _, payload := range []string{s.Text, s.Key, s.Combo, s.VarValue, s.Then, s.LoopBody} {
			if payload == "" {
				continue
			}
			payload = strings.ToLower(payload)
			for _, blocked := range safetyBlacklist {
				if strings.Contains(payload, blocked) {
					return fmt.Errorf("step %d contains blocked pattern %q", i+1, blocked)
				}
			}
		}
	}
	return nil
}

// heuristicLogicJudge rejects structurally impossible steps.
type heuristicLogicJudge struct{}

func (heuristicLogicJudge) Review(_ context.Context, p *Plan) error {
	for i, s := range p.Steps {
		switch s.Op {
		case OpWait:
			if s.Seconds < 0 {
				return fmt.Errorf("step %d: negative wait", i+1)
			}
		case OpClick:
			// A click needs a target: either coordinates or a script-form
			// button click preceded by a pointer move.
			if !s.HasLocation && s.Button == 0 {
				return fmt.Errorf("step %d: click without a target", i+1)
			}
		case OpType:
			if s.Text == "" {
				return fmt.Errorf("step %d: type with empty text", i+1)
			}
		case OpLoop:
			if s.Count <= 0 {
				return fmt.Errorf("step %d: loop with non-positive count", i+1)
			}
		}
	}
	return nil
}

// ModelJudge asks a model for a second opinion. Chat abstracts the
// gateway call so the judge is testable without network.
type ModelJudge struct {
	// Chat sends a prompt and returns the raw response text.
	Chat func(ctx context.Context, prompt string) (string, error)
}

// Review renders the plan as script and asks the model whether it is safe.
// Any answer other than a leading yes rejects. A transport failure
// approves; heuristics have already passed and a flaky reviewer must not
// block execution.
func (j ModelJudge) Review(ctx context.Context, p *Plan) error {
	if j.Chat == nil {
		return nil
	}

	prompt := fmt.Sprintf(
		"A desktop automation plan follows. Reply \"yes\" if it is safe to run, or \"no: <reason>\" if not.\n\n%s",
		ToScript(p.Steps))

	answer, err := j.Chat(ctx, prompt)
	if err != nil {
		return nil
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	if strings.HasPrefix(answer, "yes") {
		return nil
	}
	return fmt.Errorf("model rejected plan: %s", answer)
}
