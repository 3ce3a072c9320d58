package output

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

type summary struct {
	Status   string         `json:"status" yaml:"status"`
	Sessions map[string]int `json:"sessions" yaml:"sessions"`
	Queue    int            `json:"queue_depth" yaml:"queue_depth"`
	Hidden   string         `json:"-" yaml:"-"`
	internal string
}

func render(t *testing.T, f Format, data any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(&buf, f, data); err != nil {
		t.Fatalf("Write(%s) error = %v", f, err)
	}
	return buf.String()
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q in:\n%s", want, out)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWrite_JSON(t *testing.T) {
	out := render(t, FormatJSON, summary{Status: "healthy", Queue: 2, Hidden: "x"})
	assertContains(t, out, `"status": "healthy"`, `"queue_depth": 2`)
	if strings.Contains(out, "Hidden") {
		t.Errorf("ignored field leaked: %s", out)
	}
}

func TestWrite_YAML(t *testing.T) {
	out := render(t, FormatYAML, summary{Status: "healthy", Sessions: map[string]int{"paired": 2}})
	assertContains(t, out, "status: healthy", "sessions:", "  paired: 2", "queue_depth: 0")
}

func TestWrite_TableStruct(t *testing.T) {
	out := render(t, FormatTable, &summary{
		Status:   "healthy",
		Sessions: map[string]int{"pending": 1, "paired": 2},
		Hidden:   "secret",
	})
	assertContains(t, out, "FIELD", "VALUE", "healthy", "paired=2, pending=1", "queue_depth")
	if strings.Contains(out, "secret") || strings.Contains(out, "internal") {
		t.Errorf("hidden field leaked:\n%s", out)
	}
}

func TestWrite_TableMap(t *testing.T) {
	out := render(t, FormatTable, map[string]any{"b": 2, "a": true})
	if strings.Index(out, " a ") > strings.Index(out, " b ") {
		t.Errorf("keys not sorted:\n%s", out)
	}
}

func TestWrite_TableSlice(t *testing.T) {
	out := render(t, FormatTable, []*summary{{Status: "a", Queue: 1}, {Status: "b", Queue: 2}})
	assertContains(t, out, "STATUS", "QUEUE_DEPTH", " a ", " b ")
}

func TestWrite_TableScalars(t *testing.T) {
	assertContains(t, render(t, FormatTable, []string{"status", "gc"}), "VALUE", "status", "gc")

	if got := strings.TrimSpace(render(t, FormatTable, 42)); got != "42" {
		t.Errorf("Write(42) = %q, want JSON fallback 42", got)
	}
	if got := render(t, FormatTable, nil); got != "" {
		t.Errorf("Write(nil) = %q, want empty", got)
	}
}

func TestCell(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var nilPtr *string
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"empty string", "", "-"},
		{"float", 1.5, "1.5"},
		{"duration", 30 * time.Second, "30s"},
		{"time", when, "2026-01-02T03:04:05Z"},
		{"zero time", time.Time{}, "-"},
		{"empty slice", []string{}, "-"},
		{"slice", []string{"a", "b"}, "a, b"},
		{"nil pointer", nilPtr, "-"},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cell(reflect.ValueOf(tt.in)); got != tt.want {
				t.Errorf("cell(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
