package command

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseScript(t *testing.T) {
	script := `# launch and focus
pointer 200 300
click 1 s
type "hello world"
key Return
wait 1.5
drag 10 20 30 40 0.5
scroll 100 100 -3
multiclick 50 60 3 0.2
keycombo "Ctrl+Shift+T"
waitfor window "Firefox" 10
screenshot "shot.png"`

	steps := NewParser(zerolog.Nop()).Parse(script)
	if len(steps) != 11 {
		t.Fatalf("parsed %d steps, want 11", len(steps))
	}

	checks := []struct {
		name string
		ok   bool
	}{
		{"pointer", steps[0].Op == OpPointer && steps[0].X == 200 && steps[0].Y == 300},
		{"click", steps[1].Op == OpClick && steps[1].Button == 1 && !steps[1].Double},
		{"type", steps[2].Op == OpType && steps[2].Text == "hello world"},
		{"key", steps[3].Op == OpKey && steps[3].Key == "Return"},
		{"wait", steps[4].Op == OpWait && steps[4].Seconds == 1.5},
		{"drag", steps[5].Op == OpDrag && steps[5].X == 10 && steps[5].Y2 == 40 && steps[5].Duration == 0.5},
		{"scroll", steps[6].Op == OpScroll && steps[6].Amount == -3},
		{"multiclick", steps[7].Op == OpMulticlick && steps[7].Count == 3 && steps[7].Delay == 0.2},
		{"keycombo", steps[8].Op == OpKeyCombo && steps[8].Combo == "Ctrl+Shift+T"},
		{"waitfor", steps[9].Op == OpWaitFor && steps[9].Window == "Firefox" && steps[9].Timeout == 10},
		{"screenshot", steps[10].Op == OpScreenshot && steps[10].Filename == "shot.png"},
	}
	for _, c := range checks {
		if !c.ok {
			t.Errorf("%s parsed wrong", c.name)
		}
	}
}

func TestParseKeyCasePreserved(t *testing.T) {
	steps := NewParser(zerolog.Nop()).Parse("key Super_L")
	if len(steps) != 1 || steps[0].Key != "Super_L" {
		t.Fatalf("steps = %+v, key case must survive parsing", steps)
	}
}

func TestParseSkipsUnmatchedLines(t *testing.T) {
	script := "pointer 10 10\nlaunch the missiles\nkey Tab"
	steps := NewParser(zerolog.Nop()).Parse(script)
	if len(steps) != 2 {
		t.Fatalf("parsed %d steps, want 2 (bad line skipped)", len(steps))
	}
	if steps[0].Op != OpPointer || steps[1].Op != OpKey {
		t.Errorf("surviving steps wrong: %v, %v", steps[0].Op, steps[1].Op)
	}
}

func TestParseExtensions(t *testing.T) {
	script := `ifexists "Save" then click 1 s
loop 3 { key Tab }
var target = firefox`

	steps := NewParser(zerolog.Nop()).Parse(script)
	if len(steps) != 3 {
		t.Fatalf("parsed %d steps, want 3", len(steps))
	}
	if steps[0].Op != OpIfExists || steps[0].Text != "Save" || steps[0].Then != "click 1 s" {
		t.Errorf("ifexists = %+v", steps[0])
	}
	if steps[1].Op != OpLoop || steps[1].Count != 3 || steps[1].LoopBody != "key Tab" {
		t.Errorf("loop = %+v", steps[1])
	}
	if steps[2].Op != OpVar || steps[2].VarName != "target" || steps[2].VarValue != "firefox" {
		t.Errorf("var = %+v", steps[2])
	}
}

func TestScriptRoundTrip(t *testing.T) {
	script := `pointer 200 300
click 1 d
type "hello"
key Return
wait 1.5
scroll 10 20 -2
screenshot "out.png"`

	p := NewParser(zerolog.Nop())
	if got := ToScript(p.Parse(script)); got != script {
		t.Errorf("round trip mismatch:\ngot:\n%s\nwant:\n%s", got, script)
	}
}

func TestSynthesizedStepScript(t *testing.T) {
	// Steps built in code have no Original and render from fields.
	steps := []Step{
		{Op: OpKey, Key: "super"},
		{Op: OpType, Text: "firefox"},
		{Op: OpWait, Seconds: 0.5},
	}
	want := "key super\ntype \"firefox\"\nwait 0.5"
	if got := ToScript(steps); got != want {
		t.Errorf("ToScript = %q, want %q", got, want)
	}
}

func TestStepJSONWireShape(t *testing.T) {
	raw := `{"plan": [
		{"action": "click", "location": [640, 360]},
		{"action": "type", "text": "hello"},
		{"action": "key", "key": "Return"},
		{"action": "drag", "start": [0, 0], "end": [100, 200]},
		{"action": "wait", "seconds": 2}
	], "description": "demo", "estimated_time": 4}`

	var p Plan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(p.Steps) != 5 || p.Description != "demo" || p.EstimatedTime != 4 {
		t.Fatalf("plan = %+v", p)
	}

	click := p.Steps[0]
	if click.Op != OpClick || click.X != 640 || click.Y != 360 || !click.HasLocation {
		t.Errorf("click = %+v", click)
	}
	drag := p.Steps[3]
	if drag.Op != OpDrag || drag.X != 0 || drag.X2 != 100 || drag.Y2 != 200 {
		t.Errorf("drag = %+v", drag)
	}

	// Marshal keeps the array form.
	out, err := json.Marshal(p.Steps[0])
	if err != nil {
		t.Fatal(err)
	}
	var echo map[string]any
	if err := json.Unmarshal(out, &echo); err != nil {
		t.Fatal(err)
	}
	loc, ok := echo["location"].([]any)
	if !ok || len(loc) != 2 {
		t.Errorf("marshaled click lost location array: %s", out)
	}
}
