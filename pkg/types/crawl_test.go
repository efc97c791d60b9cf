package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestContentPayloadJSON(t *testing.T) {
	t.Parallel()

	plain := ContentPayload{Text: "# Title"}
	b, err := json.Marshal(plain)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"# Title"` {
		t.Fatalf("single rendition should serialise as a string, got %s", b)
	}

	multi := ContentPayload{Formats: map[string]string{"markdown": "# T", "text": "T"}}
	b, err = json.Marshal(multi)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded ContentPayload
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Formats["markdown"] != "# T" || decoded.Formats["text"] != "T" {
		t.Fatalf("roundtrip lost formats: %+v", decoded)
	}

	if err := json.Unmarshal([]byte(`""`), &decoded); err != nil {
		t.Fatalf("unmarshal empty string: %v", err)
	}
	if decoded.Formats != nil || decoded.Text != "" {
		t.Fatalf("empty string should decode to empty payload, got %+v", decoded)
	}
}

func TestSeconds2(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   time.Duration
		want float64
	}{
		{0, 0},
		{1500 * time.Millisecond, 1.5},
		{1234 * time.Millisecond, 1.23},
		{1235 * time.Millisecond, 1.24},
		{2 * time.Second, 2},
	}
	for _, tc := range cases {
		if got := Seconds2(tc.in); got != tc.want {
			t.Fatalf("Seconds2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRendition(t *testing.T) {
	t.Parallel()

	var nilOutcome *FetchOutcome
	if got := nilOutcome.Rendition("markdown"); got != "" {
		t.Fatalf("nil outcome rendition = %q", got)
	}
	o := &FetchOutcome{Content: map[string]string{"markdown": "# x"}}
	if got := o.Rendition("markdown"); got != "# x" {
		t.Fatalf("rendition = %q", got)
	}
	if got := o.Rendition("text"); got != "" {
		t.Fatalf("missing rendition = %q", got)
	}
}
