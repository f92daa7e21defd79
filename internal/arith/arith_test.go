package arith

import "testing"

func TestEval(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"5*5", 25},
		{"2+3", 5},
		{"10-4", 6},
		{"8/2", 4},
		{"2+3*4", 14},
		{"(2+3)*4", 20},
		{"-3+5", 2},
		{"1.5*2", 3},
		{" 7 * 6 ", 42},
		{"((1+2))*(3)", 9},
	}

	for _, tt := range tests {
		got, err := Eval(tt.input)
		if err != nil {
			t.Errorf("Eval(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Eval(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestEvalErrors(t *testing.T) {
	inputs := []string{
		"",
		"5/0",
		"(1+2",
		"2**3",
		"1+",
		"abc",
	}
	for _, in := range inputs {
		if _, err := Eval(in); err == nil {
			t.Errorf("Eval(%q) should fail", in)
		}
	}
}

func TestIsExpression(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"5*5", true},
		{"2 + 3", true},
		{"(1+2)/3", true},
		{"open firefox", false},
		{"5", false},        // no operator
		{"+ -", false},      // no digit
		{"2+x", false},      // letter outside whitelist
		{"rm -rf /", false}, // slash alone does not make it math
		{"", false},
	}
	for _, tt := range tests {
		if got := IsExpression(tt.input); got != tt.want {
			t.Errorf("IsExpression(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := Format(25); got != "25" {
		t.Errorf("Format(25) = %q", got)
	}
	if got := Format(2.5); got != "2.50" {
		t.Errorf("Format(2.5) = %q", got)
	}
}
