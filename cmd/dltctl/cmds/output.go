package cmds

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	outputJSON outputFormat = "json"
	outputYAML outputFormat = "yaml"
)

var _ pflag.Value = (*outputFormat)(nil)

func (o *outputFormat) String() string { return string(*o) }

func (o *outputFormat) Set(s string) error {
	switch outputFormat(s) {
	case outputJSON, outputYAML:
		*o = outputFormat(s)
		return nil
	default:
		return errors.Errorf("unsupported output format %q (json|yaml)", s)
	}
}

func (o *outputFormat) Type() string { return "format" }

func addOutputFlag(fs *pflag.FlagSet, o *outputFormat) {
	*o = outputJSON
	fs.VarP(o, "output", "o", "Output format (json|yaml)")
}

func writeOutput(w io.Writer, format outputFormat, v any) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "encode json")
	}
}
