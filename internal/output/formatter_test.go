package output

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type sample struct {
	Name  string `json:"name" yaml:"name" toon:"name"`
	Score int    `json:"score" yaml:"score" toon:"score"`
}

// stubRenderable records which renderer was used.
type stubRenderable struct {
	data sample
}

func (s stubRenderable) RenderText(w io.Writer) error {
	_, err := io.WriteString(w, "TEXT "+s.data.Name+"\n")
	return err
}

func (s stubRenderable) RenderMarkdown(w io.Writer) error {
	_, err := io.WriteString(w, "# "+s.data.Name+"\n")
	return err
}

func (s stubRenderable) RenderTable(colored bool) *Table {
	return NewTable("Scores", []string{"Name", "Score"}, [][]string{{s.data.Name, "3"}}, nil)
}

func (s stubRenderable) RenderData() any {
	return s.data
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"TEXT", FormatText, false},
		{"", FormatText, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"toon", FormatTOON, false},
		{"markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"table", FormatTable, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseFormat(%q) should fail", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat_AllFormatsRoundTrip(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
}

func TestNewFormatterWithFile(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "output.json")

	f, err := NewFormatter(FormatJSON, nil, outputPath, true)
	require.NoError(t, err)
	assert.False(t, f.colored, "color must be disabled for files")

	require.NoError(t, f.Output(sample{Name: "f", Score: 2}))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	var got sample
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, sample{Name: "f", Score: 2}, got)
}

func TestNewFormatter_BadPath(t *testing.T) {
	_, err := NewFormatter(FormatText, nil, filepath.Join(t.TempDir(), "missing", "out.txt"), false)
	assert.Error(t, err)
}

func TestFormatter_Renderable(t *testing.T) {
	r := stubRenderable{data: sample{Name: "A.m", Score: 3}}

	tests := []struct {
		format Format
		check  func(t *testing.T, out string)
	}{
		{FormatText, func(t *testing.T, out string) {
			assert.Equal(t, "TEXT A.m\n", out)
		}},
		{FormatMarkdown, func(t *testing.T, out string) {
			assert.Equal(t, "# A.m\n", out)
		}},
		{FormatTable, func(t *testing.T, out string) {
			assert.Contains(t, out, "Scores")
			assert.Contains(t, out, "A.m")
			assert.Contains(t, strings.ToUpper(out), "NAME")
		}},
		{FormatJSON, func(t *testing.T, out string) {
			var got sample
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.Equal(t, r.data, got)
		}},
		{FormatYAML, func(t *testing.T, out string) {
			var got sample
			require.NoError(t, yaml.Unmarshal([]byte(out), &got))
			assert.Equal(t, r.data, got)
		}},
		{FormatTOON, func(t *testing.T, out string) {
			assert.Contains(t, out, "name: A.m")
			assert.Contains(t, out, "score: 3")
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			f, err := NewFormatter(tt.format, &buf, "", false)
			require.NoError(t, err)
			require.NoError(t, f.Output(r))
			tt.check(t, buf.String())
		})
	}
}

func TestFormatter_RawMarkdownWrapsJSON(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(FormatMarkdown, &buf, "", false)
	require.NoError(t, err)
	require.NoError(t, f.Output(map[string]int{"a": 1}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "```json\n"))
	assert.True(t, strings.HasSuffix(out, "```\n"))
}

func TestTableMarkdown(t *testing.T) {
	table := NewTable("Functions", []string{"Name", "CC"}, [][]string{{"f", "1"}, {"g", "4"}}, []string{"Total", "5"})

	var buf bytes.Buffer
	require.NoError(t, table.Markdown(&buf))

	want := "## Functions\n\n| Name | CC |\n| --- | --- |\n| f | 1 |\n| g | 4 |\n| Total | 5 |\n\n"
	assert.Equal(t, want, buf.String())
}

func TestThresholdColor(t *testing.T) {
	old := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = old }()

	assert.Equal(t, "7", ThresholdColor(7, 0, "7"), "no limit leaves text alone")
	assert.Equal(t, color.RedString("10"), ThresholdColor(10, 10, "10"))
	assert.Equal(t, color.YellowString("5"), ThresholdColor(5, 10, "5"))
	assert.Equal(t, color.GreenString("2"), ThresholdColor(2, 10, "2"))
}
