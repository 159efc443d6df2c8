package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/pytrace/pkg/tracer"
)

// maxShownParents caps the parent list in text output.
const maxShownParents = 3

// reasonOutput is the wire shape of one provenance record.
type reasonOutput struct {
	Type    string   `json:"type" yaml:"type"`
	Parents []string `json:"parents" yaml:"parents"`
	Ignored bool     `json:"ignored" yaml:"ignored"`
	Module  string   `json:"module,omitempty" yaml:"module,omitempty"`
}

// traceOutput is the wire shape of a full trace result.
type traceOutput struct {
	Files    []string                `json:"files" yaml:"files"`
	Reasons  map[string]reasonOutput `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	Warnings []string                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func (tc *TraceCommand) writeResult(w io.Writer, result *tracer.Result) error {
	switch {
	case tc.jsonOut:
		return tc.writeJSON(w, result)
	case tc.yamlOut:
		return tc.writeYAML(w, result)
	default:
		return tc.writeText(w, result)
	}
}

func (tc *TraceCommand) buildOutput(result *tracer.Result) traceOutput {
	out := traceOutput{
		Files:    tc.fileList(result),
		Warnings: result.Warnings,
	}

	if !tc.showReasons {
		return out
	}

	out.Reasons = make(map[string]reasonOutput, len(result.Reasons))

	for path, reason := range result.Reasons {
		key := path
		if tc.relative {
			key = result.Relative(path)
		}

		out.Reasons[key] = reasonOutput{
			Type:    string(reason.Kind),
			Parents: reason.SortedParents(),
			Ignored: reason.Ignored,
			Module:  reason.Module,
		}
	}

	return out
}

func (tc *TraceCommand) fileList(result *tracer.Result) []string {
	files := result.SortedFiles()
	if !tc.relative {
		return files
	}

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = result.Relative(f)
	}

	sort.Strings(out)

	return out
}

func (tc *TraceCommand) displayPath(result *tracer.Result, path string) string {
	if tc.relative {
		return result.Relative(path)
	}

	return path
}

func (tc *TraceCommand) writeJSON(w io.Writer, result *tracer.Result) error {
	data, err := json.MarshalIndent(tc.buildOutput(result), "", "  ")
	if err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))
	if err != nil {
		return fmt.Errorf("write json output: %w", err)
	}

	return nil
}

func (tc *TraceCommand) writeYAML(w io.Writer, result *tracer.Result) error {
	data, err := yaml.Marshal(tc.buildOutput(result))
	if err != nil {
		return fmt.Errorf("encode yaml output: %w", err)
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write yaml output: %w", err)
	}

	return nil
}

func (tc *TraceCommand) writeText(w io.Writer, result *tracer.Result) error {
	if tc.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	if !tc.showReasons {
		for _, f := range tc.fileList(result) {
			fmt.Fprintln(w, f)
		}

		return nil
	}

	files := result.SortedFiles()

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.AppendHeader(table.Row{"File", "Type", "From"})

	for _, abs := range files {
		display := tc.displayPath(result, abs)

		reason := result.Reasons[abs]
		if reason == nil {
			tbl.AppendRow(table.Row{display, "", ""})

			continue
		}

		tbl.AppendRow(table.Row{display, kindTag(reason.Kind), parentSummary(reason)})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d files", len(files)), "", ""})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write text output: %w", err)
	}

	return nil
}

func kindTag(kind tracer.InclusionKind) string {
	switch kind {
	case tracer.KindInitial:
		return color.New(color.FgGreen).Sprintf("[%s]", kind)
	case tracer.KindPackage:
		return color.New(color.FgYellow).Sprintf("[%s]", kind)
	default:
		return fmt.Sprintf("[%s]", kind)
	}
}

// parentSummary joins up to maxShownParents parents, with a count of the
// rest, mirroring the plain-text reason line format.
func parentSummary(reason *tracer.Reason) string {
	parents := reason.SortedParents()
	if len(parents) == 0 {
		return ""
	}

	shown := parents
	if len(shown) > maxShownParents {
		shown = shown[:maxShownParents]
	}

	summary := strings.Join(shown, ", ")
	if extra := len(parents) - len(shown); extra > 0 {
		summary += fmt.Sprintf(" (+%d more)", extra)
	}

	return summary
}

// totalSize sums the on-disk size of the included files for the progress
// summary line.
func totalSize(result *tracer.Result) string {
	var total uint64

	for f := range result.Files {
		if info, err := os.Stat(f); err == nil {
			total += uint64(info.Size())
		}
	}

	return humanize.Bytes(total)
}
