package template

import "testing"

func TestStripCodeFenceRoundTrip(t *testing.T) {
	bare := `[{"title":"A"},{"title":"B"}]`
	fenced := "```json\n" + bare + "\n```"

	if got := StripCodeFence(fenced); got != bare {
		t.Fatalf("StripCodeFence = %q, want %q", got, bare)
	}
	if got := StripCodeFence(bare); got != bare {
		t.Fatalf("StripCodeFence(bare) = %q, want unchanged", got)
	}
}

func TestExtractJSONFragmentIgnoresSurroundingProse(t *testing.T) {
	raw := "Here you go:\n```\n{\"title\": \"A\"}\n```\nEnjoy!"
	if got := ExtractJSONFragment(raw); got != `{"title": "A"}` {
		t.Fatalf("ExtractJSONFragment = %q", got)
	}
}

func TestFlattenOutputScalars(t *testing.T) {
	raw := `{"title":"Neon Drift","mood":"dark","scores":{"pace":7,"tone":"grim"},"tags":["a","b"]}`
	vars := FlattenOutput(raw)

	if vars["title"] != "Neon Drift" {
		t.Fatalf("title = %v", vars["title"])
	}
	if vars["mood"] != "dark" {
		t.Fatalf("mood = %v", vars["mood"])
	}
	if vars["pace"] != float64(7) {
		t.Fatalf("pace = %v", vars["pace"])
	}
	if vars["tone"] != "grim" {
		t.Fatalf("tone = %v", vars["tone"])
	}
	if _, ok := vars["tags"]; ok {
		t.Fatal("arrays must not be flattened")
	}
}

func TestFlattenOutputTopLevelWinsOverNested(t *testing.T) {
	raw := `{"title":"Outer","details":{"title":"Inner","extra":"kept"}}`
	vars := FlattenOutput(raw)

	if vars["title"] != "Outer" {
		t.Fatalf("title = %v, want top-level value", vars["title"])
	}
	if vars["extra"] != "kept" {
		t.Fatalf("extra = %v", vars["extra"])
	}
}

func TestFlattenOutputInvalidJSONIsEmptyNotError(t *testing.T) {
	for _, raw := range []string{"", "not json at all", "```\ngarbage\n```"} {
		vars := FlattenOutput(raw)
		if len(vars) != 0 {
			t.Fatalf("FlattenOutput(%q) = %v, want empty", raw, vars)
		}
	}
}

func TestFlattenOutputFencedEqualsBare(t *testing.T) {
	bare := `{"name":"x","n":1}`
	fenced := "```json\n" + bare + "\n```"

	a := FlattenOutput(bare)
	b := FlattenOutput(fenced)
	if len(a) != len(b) || a["name"] != b["name"] || a["n"] != b["n"] {
		t.Fatalf("fenced and bare outputs differ: %v vs %v", a, b)
	}
}
