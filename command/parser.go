package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// pattern pairs an op with its line regexp and field builder. Order
// matters: the first matching pattern wins.
type pattern struct {
	op    Op
	re    *regexp.Regexp
	build func(groups []string, original string) Step
}

var linePatterns = []pattern{
	{OpPointer, regexp.MustCompile(`(?i)^pointer\s+(\d+)\s+(\d+)`), func(g []string, orig string) Step {
		return Step{Op: OpPointer, X: atoi(g[1]), Y: atoi(g[2]), HasLocation: true}
	}},
	{OpClick, regexp.MustCompile(`(?i)^click\s+(\d+)\s+([sd])`), func(g []string, orig string) Step {
		return Step{Op: OpClick, Button: atoi(g[1]), Double: strings.EqualFold(g[2], "d")}
	}},
	{OpType, regexp.MustCompile(`(?i)^type\s+"([^"]+)"`), func(g []string, orig string) Step {
		return Step{Op: OpType, Text: g[1]}
	}},
	// The key name keeps its original case; key symbols are case sensitive
	// downstream (Return, not return).
	{OpKey, regexp.MustCompile(`(?i)^key\s+(\S+)`), func(g []string, orig string) Step {
		return Step{Op: OpKey, Key: g[1]}
	}},
	{OpWait, regexp.MustCompile(`(?i)^wait\s+([\d.]+)`), func(g []string, orig string) Step {
		return Step{Op: OpWait, Seconds: atof(g[1])}
	}},
	{OpDrag, regexp.MustCompile(`(?i)^drag\s+(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s+([\d.]+)`), func(g []string, orig string) Step {
		return Step{Op: OpDrag, X: atoi(g[1]), Y: atoi(g[2]), X2: atoi(g[3]), Y2: atoi(g[4]), Duration: atof(g[5]), HasLocation: true}
	}},
	{OpScroll, regexp.MustCompile(`(?i)^scroll\s+(\d+)\s+(\d+)\s+(-?\d+)`), func(g []string, orig string) Step {
		return Step{Op: OpScroll, X: atoi(g[1]), Y: atoi(g[2]), Amount: atoi(g[3]), HasLocation: true}
	}},
	{OpSwipe, regexp.MustCompile(`(?i)^swipe\s+(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s+([\d.]+)`), func(g []string, orig string) Step {
		return Step{Op: OpSwipe, X: atoi(g[1]), Y: atoi(g[2]), X2: atoi(g[3]), Y2: atoi(g[4]), Duration: atof(g[5]), HasLocation: true}
	}},
	{OpMulticlick, regexp.MustCompile(`(?i)^multiclick\s+(\d+)\s+(\d+)\s+(\d+)\s+([\d.]+)`), func(g []string, orig string) Step {
		return Step{Op: OpMulticlick, X: atoi(g[1]), Y: atoi(g[2]), Count: atoi(g[3]), Delay: atof(g[4]), HasLocation: true}
	}},
	{OpKeyCombo, regexp.MustCompile(`(?i)^keycombo\s+"([^"]+)"`), func(g []string, orig string) Step {
		return Step{Op: OpKeyCombo, Combo: g[1]}
	}},
	{OpWaitFor, regexp.MustCompile(`(?i)^waitfor\s+window\s+"([^"]+)"\s+(\d+)`), func(g []string, orig string) Step {
		return Step{Op: OpWaitFor, Window: g[1], Timeout: atoi(g[2])}
	}},
	{OpScreenshot, regexp.MustCompile(`(?i)^screenshot\s+"([^"]+)"`), func(g []string, orig string) Step {
		return Step{Op: OpScreenshot, Filename: g[1]}
	}},
	{OpIfExists, regexp.MustCompile(`(?i)^ifexists\s+"([^"]+)"\s+then\s+(.+)`), func(g []string, orig string) Step {
		return Step{Op: OpIfExists, Text: g[1], Then: strings.TrimSpace(g[2])}
	}},
	{OpLoop, regexp.MustCompile(`(?is)^loop\s+(\d+)\s+\{(.+)\}`), func(g []string, orig string) Step {
		return Step{Op: OpLoop, Count: atoi(g[1]), LoopBody: strings.TrimSpace(g[2])}
	}},
	{OpVar, regexp.MustCompile(`(?i)^var\s+(\w+)\s*=\s*(.+)`), func(g []string, orig string) Step {
		return Step{Op: OpVar, VarName: g[1], VarValue: strings.TrimSpace(g[2])}
	}},
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// Parser turns G-code style scripts into steps.
type Parser struct {
	log zerolog.Logger
}

// NewParser creates a script parser.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

// Parse converts a multi-line script into steps. Blank lines and lines
// starting with '#' are skipped. A line matching no pattern is logged and
// skipped; it never aborts the rest of the script.
func (p *Parser) Parse(script string) []Step {
	var steps []Step

	for lineNum, raw := range strings.Split(strings.TrimSpace(script), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		step, ok := parseLine(line)
		if !ok {
			p.log.Warn().Int("line", lineNum+1).Str("text", line).Msg("unparseable script line skipped")
			continue
		}
		steps = append(steps, step)
	}
	return steps
}

func parseLine(line string) (Step, bool) {
	for _, pat := range linePatterns {
		if g := pat.re.FindStringSubmatch(line); g != nil {
			step := pat.build(g, line)
			step.Original = line
			return step, true
		}
	}
	return Step{}, false
}

// ToScript converts steps back to script text. Steps that came from a
// parsed line reproduce that line exactly; synthesized steps are rendered
// from their fields.
func ToScript(steps []Step) string {
	lines := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.Original != "" {
			lines = append(lines, s.Original)
			continue
		}
		if line := s.Script(); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Script renders the step as a single script line.
func (s Step) Script() string {
	switch s.Op {
	case OpPointer:
		return fmt.Sprintf("pointer %d %d", s.X, s.Y)
	case OpClick:
		mode := "s"
		if s.Double {
			mode = "d"
		}
		button := s.Button
		if button == 0 {
			button = 1
		}
		return fmt.Sprintf("click %d %s", button, mode)
	case OpType:
		return fmt.Sprintf("type %q", s.Text)
	case OpKey:
		return "key " + s.Key
	case OpWait:
		return "wait " + trimFloat(s.Seconds)
	case OpDrag:
		return fmt.Sprintf("drag %d %d %d %d %s", s.X, s.Y, s.X2, s.Y2, trimFloat(s.Duration))
	case OpScroll:
		return fmt.Sprintf("scroll %d %d %d", s.X, s.Y, s.Amount)
	case OpSwipe:
		return fmt.Sprintf("swipe %d %d %d %d %s", s.X, s.Y, s.X2, s.Y2, trimFloat(s.Duration))
	case OpMulticlick:
		return fmt.Sprintf("multiclick %d %d %d %s", s.X, s.Y, s.Count, trimFloat(s.Delay))
	case OpKeyCombo:
		return fmt.Sprintf("keycombo %q", s.Combo)
	case OpWaitFor:
		return fmt.Sprintf("waitfor window %q %d", s.Window, s.Timeout)
	case OpScreenshot:
		return fmt.Sprintf("screenshot %q", s.Filename)
	case OpIfExists:
		return fmt.Sprintf("ifexists %q then %s", s.Text, s.Then)
	case OpLoop:
		return fmt.Sprintf("loop %d { %s }", s.Count, s.LoopBody)
	case OpVar:
		return fmt.Sprintf("var %s = %s", s.VarName, s.VarValue)
	}
	return s.Original
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
