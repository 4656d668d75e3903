package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v2"
)

// outputFormat is the value of the --output flag.
type outputFormat string

const (
	formatText outputFormat = "text"
	formatYAML outputFormat = "yaml"
	formatJSON outputFormat = "json"
)

func (f *outputFormat) String() string {
	return string(*f)
}

func (f *outputFormat) Set(s string) error {
	switch v := outputFormat(s); v {
	case formatText, formatYAML, formatJSON:
		*f = v
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, yaml or json)", s)
}

func (f *outputFormat) Type() string {
	return "format"
}

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
	colorGreen = "\x1b[32m"
	colorCyan  = "\x1b[36m"
	colorRed   = "\x1b[31m"
)

// printer writes command results in the selected format. Text output is
// colorized only when it goes to a terminal.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer) *printer {
	if f, ok := w.(*os.File); ok && f == os.Stdout && isatty.IsTerminal(f.Fd()) {
		return &printer{w: colorable.NewColorableStdout(), color: true}
	}
	return &printer{w: w}
}

func (p *printer) paint(color, s string) string {
	if !p.color || s == "" {
		return s
	}
	return color + s + colorReset
}

// render writes v as YAML or JSON, or calls text for the text format.
func (p *printer) render(format outputFormat, v interface{}, text func()) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = p.w.Write(out)
		return err
	default:
		text()
		return nil
	}
}
