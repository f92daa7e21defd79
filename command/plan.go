// Package command defines action plans, the script parser that produces
// them, the validator that gates them, and the executor that runs them.
//
// A plan comes from one of two sources: a model response in JSON form
// (steps carry "location"/"start"/"end" coordinate arrays) or a G-code
// style script ("pointer 200 200", "click 1 s", `type "hello"`). Both
// normalize into the same Step type.

package command

import (
	"encoding/json"
	"fmt"
)

// Op enumerates the supported step actions.
type Op string

const (
	OpPointer    Op = "pointer"
	OpClick      Op = "click"
	OpType       Op = "type"
	OpKey        Op = "key"
	OpWait       Op = "wait"
	OpDrag       Op = "drag"
	OpScroll     Op = "scroll"
	OpSwipe      Op = "swipe"
	OpMulticlick Op = "multiclick"
	OpKeyCombo   Op = "keycombo"
	OpWaitFor    Op = "waitfor"
	OpScreenshot Op = "screenshot"

	// Script extensions. Parsed and carried through, skipped by the
	// executor until conditional execution lands.
	OpIfExists Op = "ifexists"
	OpLoop     Op = "loop"
	OpVar      Op = "var"
)

// Step is one action in a plan. Fields are populated per Op; unused
// fields stay zero. Original retains the script line a parsed step came
// from so ToScript can reproduce it byte for byte.
type Step struct {
	Op Op

	X, Y   int
	X2, Y2 int
	// HasLocation distinguishes an explicit (0,0) target from an absent one.
	HasLocation bool

	Button   int  // 1=left, 2=middle, 3=right
	Double   bool // double click
	Text     string
	Key      string
	Seconds  float64
	Duration float64
	Amount   int
	Count    int
	Delay    float64
	Combo    string
	Window   string
	Timeout  int
	Filename string

	// Extension payloads.
	Then     string // ifexists: the action to run when text is found
	LoopBody string // loop: raw inner script
	VarName  string
	VarValue string

	Original string
}

// stepJSON is the wire shape used by model responses and the IPC surface.
type stepJSON struct {
	Action   string  `json:"action"`
	Location []int   `json:"location,omitempty"`
	Start    []int   `json:"start,omitempty"`
	End      []int   `json:"end,omitempty"`
	Text     string  `json:"text,omitempty"`
	Key      string  `json:"key,omitempty"`
	Seconds  float64 `json:"seconds,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Button   int     `json:"button,omitempty"`
	Double   bool    `json:"double,omitempty"`
	Amount   int     `json:"amount,omitempty"`
	Count    int     `json:"count,omitempty"`
	Delay    float64 `json:"delay,omitempty"`
	Combo    string  `json:"combo,omitempty"`
	Window   string  `json:"window,omitempty"`
	Timeout  int     `json:"timeout,omitempty"`
	Filename string  `json:"filename,omitempty"`
}

// MarshalJSON emits the wire shape, folding coordinates back into arrays.
func (s Step) MarshalJSON() ([]byte, error) {
	w := stepJSON{
		Action:   string(s.Op),
		Text:     s.Text,
		Key:      s.Key,
		Seconds:  s.Seconds,
		Duration: s.Duration,
		Button:   s.Button,
		Double:   s.Double,
		Amount:   s.Amount,
		Count:    s.Count,
		Delay:    s.Delay,
		Combo:    s.Combo,
		Window:   s.Window,
		Timeout:  s.Timeout,
		Filename: s.Filename,
	}
	switch s.Op {
	case OpDrag, OpSwipe:
		w.Start = []int{s.X, s.Y}
		w.End = []int{s.X2, s.Y2}
	default:
		if s.HasLocation {
			w.Location = []int{s.X, s.Y}
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the wire shape and normalizes coordinate arrays.
func (s *Step) UnmarshalJSON(data []byte) error {
	var w stepJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Step{
		Op:       Op(w.Action),
		Text:     w.Text,
		Key:      w.Key,
		Seconds:  w.Seconds,
		Duration: w.Duration,
		Button:   w.Button,
		Double:   w.Double,
		Amount:   w.Amount,
		Count:    w.Count,
		Delay:    w.Delay,
		Combo:    w.Combo,
		Window:   w.Window,
		Timeout:  w.Timeout,
		Filename: w.Filename,
	}
	if len(w.Location) == 2 {
		s.X, s.Y = w.Location[0], w.Location[1]
		s.HasLocation = true
	}
	if len(w.Start) == 2 {
		s.X, s.Y = w.Start[0], w.Start[1]
		s.HasLocation = true
	}
	if len(w.End) == 2 {
		s.X2, s.Y2 = w.End[0], w.End[1]
	}
	return nil
}

// Plan is a described sequence of steps plus provenance flags.
type Plan struct {
	Description   string  `json:"description,omitempty"`
	Steps         []Step  `json:"plan,omitempty"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`

	// SystemQuery marks answers resolved locally without inference.
	SystemQuery bool `json:"system_query,omitempty"`
	// FallbackMode marks plans produced by the rule-based planner.
	FallbackMode bool `json:"fallback_mode,omitempty"`
	// Err carries a pipeline-level failure; an errored plan never executes.
	Err string `json:"error,omitempty"`

	// Metadata travels with cached and IPC responses but never affects
	// execution.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ErrorPlan builds a plan that carries only a failure.
func ErrorPlan(format string, args ...any) *Plan {
	return &Plan{Err: fmt.Sprintf(format, args...)}
}

// AnswerPlan builds a plan that is a direct answer with no steps.
func AnswerPlan(description string) *Plan {
	return &Plan{Description: description}
}

// IsError reports whether the plan carries a failure.
func (p *Plan) IsError() bool { return p.Err != "" }

// IsAnswer reports whether the plan is a stepless direct answer.
func (p *Plan) IsAnswer() bool { return p.Err == "" && len(p.Steps) == 0 }
