package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/errprop/internal/calcerr"
	"github.com/fyrsmithlabs/errprop/internal/config"
	"github.com/fyrsmithlabs/errprop/internal/expr"
	"github.com/fyrsmithlabs/errprop/internal/quantity"
	"github.com/fyrsmithlabs/errprop/internal/worksheet"
)

// printer writes run results in one of the render formats.
type printer struct {
	w      io.Writer
	format string

	name  lipgloss.Style
	eq    lipgloss.Style
	value lipgloss.Style
	fail  lipgloss.Style
}

func newPrinter(w io.Writer, format string, color bool) (*printer, error) {
	switch format {
	case config.FormatPlain, config.FormatLaTeX, config.FormatJSON:
	default:
		return nil, calcerr.Usage("render", "unknown format %q (want plain, latex or json)", format)
	}

	// The renderer drops styling when w is not a terminal.
	r := lipgloss.NewRenderer(w)
	p := &printer{
		w:      w,
		format: format,
		name:   r.NewStyle(),
		eq:     r.NewStyle(),
		value:  r.NewStyle(),
		fail:   r.NewStyle(),
	}
	if color {
		p.name = p.name.Foreground(lipgloss.Color("51")).Bold(true)
		p.eq = p.eq.Foreground(lipgloss.Color("241"))
		p.value = p.value.Foreground(lipgloss.Color("46"))
		p.fail = p.fail.Foreground(lipgloss.Color("196")).Bold(true)
	}
	return p, nil
}

type jsonOutput struct {
	Worksheet  string       `json:"worksheet,omitempty"`
	Mode       string       `json:"mode"`
	Precision  int          `json:"precision"`
	Derivation []string     `json:"derivation,omitempty"`
	Results    []jsonResult `json:"results"`
}

type jsonResult struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Errors []float64 `json:"errors"`
}

// derivation prints the derivation of the final step followed by its value.
func (p *printer) derivation(path string, res *worksheet.Result) error {
	final := res.Final()

	switch p.format {
	case config.FormatJSON:
		return p.json(path, res, []worksheet.Binding{final})

	case config.FormatLaTeX:
		for _, line := range res.Derivation {
			if _, err := fmt.Fprintln(p.w, line); err != nil {
				return err
			}
		}
		return nil
	}

	pad := strings.Repeat(" ", len([]rune(final.Name))+1)
	for i, line := range res.Derivation {
		lead := p.name.Render(final.Name) + " "
		if i > 0 {
			lead = pad
		}
		if _, err := fmt.Fprintf(p.w, "%s%s %s\n", lead, p.eq.Render("="), stripMath(line)); err != nil {
			return err
		}
	}
	lead := p.name.Render(final.Name) + " "
	if len(res.Derivation) > 0 {
		lead = pad
	}
	_, err := fmt.Fprintf(p.w, "%s%s %s\n", lead, p.eq.Render("="), p.value.Render(formatQuantity(final.Quantity, res.Precision)))
	return err
}

// results prints the value of every step.
func (p *printer) results(path string, res *worksheet.Result) error {
	if p.format == config.FormatJSON {
		return p.json(path, res, res.Steps)
	}

	for _, b := range res.Steps {
		v := formatQuantity(b.Quantity, res.Precision)
		var err error
		if p.format == config.FormatLaTeX {
			_, err = fmt.Fprintf(p.w, "$%s = %s$\n", b.Name, strings.ReplaceAll(v, "±", `\pm`))
		} else {
			_, err = fmt.Fprintf(p.w, "%s %s %s\n", p.name.Render(b.Name), p.eq.Render("="), p.value.Render(v))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) json(path string, res *worksheet.Result, steps []worksheet.Binding) error {
	out := jsonOutput{
		Worksheet:  path,
		Mode:       string(res.Mode),
		Precision:  res.Precision,
		Derivation: res.Derivation,
		Results:    make([]jsonResult, 0, len(steps)),
	}
	for _, b := range steps {
		out.Results = append(out.Results, jsonResult{
			Name:   b.Name,
			Values: b.Quantity.Values(),
			Errors: b.Quantity.Errors(),
		})
	}

	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// failure prints a run error, used between re-runs in watch mode.
func (p *printer) failure(err error) {
	fmt.Fprintf(p.w, "%s %v\n", p.fail.Render("error:"), err)
}

func stripMath(line string) string {
	return strings.TrimSuffix(strings.TrimPrefix(line, "$"), "$")
}

// formatQuantity renders q as "v ± e", bracketed when q has several elements.
func formatQuantity(q quantity.Quantity, precision int) string {
	parts := make([]string, q.Len())
	for i := range parts {
		parts[i] = expr.FormatNumber(q.Value(i), precision) + " ± " + expr.FormatNumber(q.Error(i), precision)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
