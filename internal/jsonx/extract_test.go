package jsonx

import "testing"

type planPayload struct {
	Description   string `json:"description"`
	EstimatedTime float64 `json:"estimated_time"`
}

func TestExtractObjectPureJSON(t *testing.T) {
	got, err := ExtractObject[planPayload](`{"description": "done", "estimated_time": 2}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Description != "done" || got.EstimatedTime != 2 {
		t.Errorf("got %+v", got)
	}
}

func TestExtractObjectFenced(t *testing.T) {
	response := "```json\n{\"description\": \"opening firefox\"}\n```"
	got, err := ExtractObject[planPayload](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Description != "opening firefox" {
		t.Errorf("description = %q", got.Description)
	}
}

func TestExtractObjectEmbeddedInProse(t *testing.T) {
	response := `Sure! Here is the plan: {"description": "typing"} Let me know.`
	got, err := ExtractObject[planPayload](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Description != "typing" {
		t.Errorf("description = %q", got.Description)
	}
}

func TestExtractNoJSON(t *testing.T) {
	if _, err := Extract("just a friendly sentence"); err == nil {
		t.Error("expected error for prose with no JSON")
	}
}

func TestExtractUnbalanced(t *testing.T) {
	if _, err := Extract(`{"description": "broken`); err == nil {
		t.Error("expected error for unbalanced object")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{}\n```", "{}"},
		{"```\n{}\n```", "{}"},
		{"{}", "{}"},
		{"  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
