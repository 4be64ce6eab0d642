package worksheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/errprop/internal/calcerr"
	"github.com/fyrsmithlabs/errprop/internal/expr"
)

// maxFileSize bounds worksheet files.
const maxFileSize = 1024 * 1024

// Worksheet is a named sequence of calculation steps over measured quantities.
type Worksheet struct {
	// Path is the file the worksheet was loaded from, if any.
	Path string `yaml:"-" toml:"-"`

	// Precision overrides the configured rounding of derivation lines.
	Precision *int `yaml:"precision" toml:"precision"`

	Quantities []QuantitySpec `yaml:"quantities" toml:"quantities"`
	Steps      []StepSpec     `yaml:"steps" toml:"steps"`
}

// QuantitySpec declares an input quantity.
type QuantitySpec struct {
	Name   string    `yaml:"name" toml:"name"`
	Values []float64 `yaml:"values" toml:"values"`
	Errors []float64 `yaml:"errors" toml:"errors"`
}

// StepSpec applies Op to Args and binds the result to Name.
type StepSpec struct {
	Name string `yaml:"name" toml:"name"`
	Op   string `yaml:"op" toml:"op"`
	Args []Arg  `yaml:"args" toml:"args"`
}

// Arg is a step argument: the name of a quantity or earlier step, or a
// numeric literal.
type Arg struct {
	Name     string
	Number   float64
	IsNumber bool
}

// NameArg returns an argument referring to name.
func NameArg(name string) Arg { return Arg{Name: name} }

// NumberArg returns a literal argument.
func NumberArg(v float64) Arg { return Arg{Number: v, IsNumber: true} }

func (a Arg) String() string {
	if a.IsNumber {
		return strconv.FormatFloat(a.Number, 'g', -1, 64)
	}
	return a.Name
}

// UnmarshalYAML decodes a scalar node into a name or a number.
func (a *Arg) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: step argument must be a name or a number", node.Line)
	}
	switch node.ShortTag() {
	case "!!int", "!!float":
		var v float64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*a = NumberArg(v)
	default:
		*a = NameArg(node.Value)
	}
	return nil
}

// UnmarshalTOML decodes a string or numeric array element.
func (a *Arg) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		*a = NameArg(v)
	case int64:
		*a = NumberArg(float64(v))
	case float64:
		*a = NumberArg(v)
	default:
		return fmt.Errorf("step argument must be a name or a number, got %T", data)
	}
	return nil
}

// Format is a worksheet file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the syntax from the file extension. Anything but
// .toml is read as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads and validates the worksheet at path.
func Load(path string) (*Worksheet, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	ws, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ws.Path = path
	return ws, nil
}

// Parse decodes and validates a worksheet.
func Parse(data []byte, format Format) (*Worksheet, error) {
	var ws Worksheet
	switch format {
	case FormatTOML:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&ws)
		if err != nil {
			return nil, calcerr.Validation("worksheet.parse", "invalid TOML: %v", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, calcerr.Validation("worksheet.parse", "unknown key %q", undecoded[0].String())
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&ws); err != nil && !errors.Is(err, io.EOF) {
			return nil, calcerr.Validation("worksheet.parse", "invalid YAML: %v", err)
		}
	default:
		return nil, calcerr.Validation("worksheet.parse", "unknown format %q", format)
	}

	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return &ws, nil
}

// Validate checks names, operations and argument references. Every name
// must be declared before it is used and declared only once.
func (ws *Worksheet) Validate() error {
	if ws.Precision != nil && *ws.Precision < 0 {
		return calcerr.Validation("worksheet.validate", "precision must be non-negative, got %d", *ws.Precision)
	}
	if len(ws.Steps) == 0 {
		return calcerr.Validation("worksheet.validate", "worksheet has no steps")
	}

	declared := make(map[string]bool)
	declare := func(kind, name string) error {
		if strings.TrimSpace(name) == "" {
			return calcerr.Validation("worksheet.validate", "%s without a name", kind)
		}
		if !expr.ValidName(name) {
			return calcerr.Validation("worksheet.validate", "%s name %q must not contain %q", kind, name, expr.ReservedChars)
		}
		if declared[name] {
			return calcerr.Validation("worksheet.validate", "%q is declared twice", name)
		}
		declared[name] = true
		return nil
	}

	for _, q := range ws.Quantities {
		if err := declare("quantity", q.Name); err != nil {
			return err
		}
		if len(q.Values) == 0 {
			return calcerr.Validation("worksheet.validate", "quantity %q has no values", q.Name)
		}
		if len(q.Errors) > 0 && len(q.Errors) != len(q.Values) {
			return calcerr.Validation("worksheet.validate", "quantity %q has %d values and %d errors", q.Name, len(q.Values), len(q.Errors))
		}
	}

	for i, s := range ws.Steps {
		op, err := ParseOp(s.Op)
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if len(s.Args) != op.Arity() {
			return calcerr.Validation("worksheet.validate", "step %q: %s takes %d argument(s), got %d", s.Name, op, op.Arity(), len(s.Args))
		}
		quantities := 0
		for _, arg := range s.Args {
			if arg.IsNumber {
				continue
			}
			if !declared[arg.Name] {
				return calcerr.Validation("worksheet.validate", "step %q: unknown name %q", s.Name, arg.Name)
			}
			quantities++
		}
		if quantities == 0 {
			return calcerr.Validation("worksheet.validate", "step %q: at least one argument must be a quantity", s.Name)
		}
		if op == OpPow && quantities == 2 {
			return calcerr.Validation("worksheet.validate", "step %q: pow needs a numeric base or exponent", s.Name)
		}
		if err := declare("step", s.Name); err != nil {
			return err
		}
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open worksheet: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat worksheet: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("worksheet path %s is a directory", path)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("worksheet too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	return io.ReadAll(io.LimitReader(f, maxFileSize+1))
}
