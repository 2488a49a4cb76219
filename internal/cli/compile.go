package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/veneer/internal/compiler"
	"github.com/roach88/veneer/internal/component"
	"github.com/roach88/veneer/internal/ids"
	"github.com/roach88/veneer/internal/manifest"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// ComponentSummary describes one compiled component.
type ComponentSummary struct {
	Name          string         `json:"name"`
	Tag           string         `json:"tag"`
	Template      string         `json:"template"` // file path, or "inline"
	Elements      int            `json:"elements"`
	Directives    map[string]int `json:"directives"`
	Constructable bool           `json:"constructable,omitempty"`
	State         []string       `json:"state,omitempty"`
}

// CompilationResult holds every compiled component.
type CompilationResult struct {
	Components []ComponentSummary `json:"components"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <manifest-dir>",
		Short: "Compile component manifests",
		Long: `Load the CUE component manifests in a directory and compile every
component's template into a directive graph.

Reports each component's tag and directive counts, or every manifest
and template error with its source position.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the summary as JSON to this file")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	logger := opts.logger()

	set, errs := manifest.Load(dir, manifest.LoadModeCollectAll)
	if set == nil {
		return outputCompileErrors(formatter, errs)
	}
	logger.Debug("manifests loaded", "dir", dir, "files", set.FileCount, "components", len(set.Components))

	result := &CompilationResult{Components: []ComponentSummary{}}
	for _, def := range set.Components {
		summary, err := summarize(def, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug("component compiled", "component", def.Name, "elements", summary.Elements)
		result.Components = append(result.Components, summary)
	}
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	if opts.Output != "" {
		if err := writeSummary(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}
	return outputCompileSuccess(formatter, result, opts.Output)
}

// summarize instantiates def once to compile its template, then disposes it.
func summarize(def *manifest.Component, opts *CompileOptions) (ComponentSummary, error) {
	comp, state, err := def.Instantiate(nil,
		component.WithLogger(opts.logger()),
		component.WithIDGenerator(ids.NewSequence(def.Tag)),
	)
	if err != nil {
		return ComponentSummary{}, err
	}
	defer comp.Dispose()

	summary := ComponentSummary{
		Name:          def.Name,
		Tag:           def.Tag,
		Template:      "inline",
		Elements:      comp.Graph().Len(),
		Directives:    map[string]int{},
		Constructable: def.Constructable,
		State:         state.Keys(),
	}
	if def.TemplatePath != "" {
		summary.Template = def.TemplatePath
	}
	comp.Graph().Walk(func(d compiler.Directive) {
		summary.Directives[d.Name()]++
	})
	return summary, nil
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d component(s)\n\n", len(result.Components))
	for _, c := range result.Components {
		fmt.Fprintf(w, "  %s <%s>: %d element(s)%s\n", c.Name, c.Tag, c.Elements, formatDirectiveCounts(c.Directives))
	}
	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote summary to %s\n", outputFile)
	}
	return nil
}

// formatDirectiveCounts renders counts sorted by directive name.
func formatDirectiveCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := ","
	for _, name := range names {
		out += fmt.Sprintf(" %s×%d", name, counts[name])
	}
	return out
}

// outputCompileErrors outputs every manifest error. Manifest errors are
// command-level errors (exit code 2).
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	summary := fmt.Sprintf("compilation failed with %d error(s)", len(errs))

	if formatter.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			cliErrors[i] = toCLIError(err)
		}
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, summary)
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Compilation failed")
	fmt.Fprintln(w)
	for _, err := range errs {
		fmt.Fprintf(w, "  %s\n", err)
	}
	return NewExitError(ExitCommandError, summary)
}

func toCLIError(err error) CLIError {
	var ce *manifest.CompileError
	if errors.As(err, &ce) {
		out := CLIError{Code: ce.Code, Message: ce.Message}
		if ce.Pos.IsValid() {
			out.Details = map[string]any{
				"component": ce.Component,
				"field":     ce.Field,
				"file":      ce.Pos.Filename(),
				"line":      ce.Pos.Line(),
				"column":    ce.Pos.Column(),
			}
		}
		return out
	}
	return CLIError{Code: manifest.Code(err), Message: err.Error()}
}

// writeSummary writes the compilation result as indented JSON.
func writeSummary(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
