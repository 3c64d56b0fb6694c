package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Bytes int64  `json:"bytes" yaml:"bytes"`
}

func TestOutput(t *testing.T) {
	v := sample{Name: "tunnel", Bytes: 42}

	t.Run("yaml default", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Output(v, OutputOptions{Writer: &buf}); err != nil {
			t.Fatal(err)
		}
		if got := buf.String(); !strings.Contains(got, "name: tunnel") || !strings.Contains(got, "bytes: 42") {
			t.Errorf("yaml output = %q", got)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Output(v, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
			t.Fatal(err)
		}
		var got sample
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid json %q: %v", buf.String(), err)
		}
		if got != v {
			t.Errorf("json output = %+v, want %+v", got, v)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if err := Output(v, OutputOptions{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
			t.Error("expected error for xml")
		}
	})
}

func TestPrinter(t *testing.T) {
	var out, errOut bytes.Buffer
	p := &Printer{Styles: NewStyles(DefaultTheme), Out: &out, Err: &errOut}

	p.Field("Endpoint", "http://localhost:8080/x")
	p.Success("attached %d", 1)
	p.Info("waiting")
	p.Warning("slow")
	p.Error("failed: %s", "boom")

	for _, want := range []string{"Endpoint:", "http://localhost:8080/x", "attached 1", "waiting"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("stdout %q missing %q", out.String(), want)
		}
	}
	for _, want := range []string{"slow", "Error:", "failed: boom"} {
		if !strings.Contains(errOut.String(), want) {
			t.Errorf("stderr %q missing %q", errOut.String(), want)
		}
	}
}
