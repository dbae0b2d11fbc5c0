package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/zephyrtronium/varcalc"
)

// evalOptions holds the flags of the root command.
type evalOptions struct {
	in        string
	given     []string
	varsFiles []string
}

// Result is the outcome of evaluating one expression.
type Result struct {
	Expr  string `json:"expr" yaml:"expr"`
	Tree  string `json:"tree,omitempty" yaml:"tree,omitempty"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// errFailed reports that at least one expression could not be evaluated.
// The individual errors have already been printed.
var errFailed = errors.New("some expressions failed")

var errPrefix = color.New(color.FgRed, color.Bold).SprintFunc()

func runEval(cmd *cobra.Command, args []string, opts *evalOptions) error {
	format := viper.GetString("output")
	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	ctx, err := loadContext(opts)
	if err != nil {
		return err
	}

	if len(args) == 0 && opts.in == "" && isTerminal(cmd.InOrStdin()) {
		return interactive(cmd, ctx)
	}

	srcs, err := sources(cmd, args, opts)
	if err != nil {
		return err
	}
	log.Debug().Int("count", len(srcs)).Msg("evaluating expressions")

	results := make([]Result, 0, len(srcs))
	failed := 0
	for _, src := range srcs {
		r := evaluate(ctx, src)
		if r.Error != "" {
			failed++
		}
		results = append(results, r)
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		if err := printJSON(out, results); err != nil {
			return err
		}
	case "yaml":
		if err := printYAML(out, results); err != nil {
			return err
		}
	default:
		for _, r := range results {
			printResult(cmd, r)
		}
	}
	if failed > 0 {
		log.Error().Int("failed", failed).Int("total", len(results)).Msg("evaluation failed")
		return errFailed
	}
	return nil
}

// loadContext builds the evaluation context from variable files and then
// --given definitions, in order.
func loadContext(opts *evalOptions) (*varcalc.Context, error) {
	ctx := varcalc.NewContext()
	for _, name := range opts.varsFiles {
		vars, err := readVars(name)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("file", name).Int("count", len(vars)).Msg("loaded variables")
		ctx = ctx.Clone(varcalc.SetVars(vars))
	}
	for _, def := range opts.given {
		name, val, ok := strings.Cut(def, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf(`variable definitions must be "name=value", not %q`, def)
		}
		e, err := varcalc.ParseString(val)
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", name, &varcalc.InvalidExpressionError{Expr: val, Err: err})
		}
		r, err := ctx.Eval(e)
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", name, &varcalc.InvalidExpressionError{Expr: val, Err: err})
		}
		log.Debug().Str("name", name).Float64("value", r).Msg("defined variable")
		ctx = ctx.Clone(varcalc.SetVar(name, r))
	}
	return ctx, nil
}

// readVars reads a YAML mapping of variable names to numbers. JSON objects
// are valid YAML, so JSON files work too.
func readVars(name string) (map[string]float64, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading variables: %w", err)
	}
	var vars map[string]float64
	if err := yaml.Unmarshal(b, &vars); err != nil {
		return nil, fmt.Errorf("reading variables from %s: %w", name, err)
	}
	return vars, nil
}

// sources collects the expression sources: the arguments if there are any,
// otherwise the input file or stdin.
func sources(cmd *cobra.Command, args []string, opts *evalOptions) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	var in io.Reader = cmd.InOrStdin()
	if opts.in != "" && opts.in != "-" {
		f, err := os.Open(opts.in)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}
	if !viper.GetBool("lines") {
		b, err := io.ReadAll(in)
		if err != nil {
			return nil, err
		}
		return []string{string(b)}, nil
	}
	var srcs []string
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		srcs = append(srcs, line)
	}
	return srcs, sc.Err()
}

// evaluate parses and evaluates one expression.
func evaluate(ctx *varcalc.Context, src string) Result {
	r := Result{Expr: strings.TrimSpace(src)}
	e, err := varcalc.ParseString(src)
	if err != nil {
		r.Error = (&varcalc.InvalidExpressionError{Expr: r.Expr, Err: err}).Error()
		log.Debug().Err(err).Str("expr", r.Expr).Msg("parse failed")
		return r
	}
	if viper.GetBool("echo") {
		r.Tree = e.String()
	}
	v, err := ctx.Eval(e)
	if err != nil {
		r.Error = (&varcalc.InvalidExpressionError{Expr: r.Expr, Err: err}).Error()
		log.Debug().Err(err).Str("expr", r.Expr).Msg("evaluation failed")
		return r
	}
	r.Value = fmt.Sprintf(viper.GetString("fmt"), v)
	return r
}

// printResult writes a result in text form. Errors go to the error stream.
func printResult(cmd *cobra.Command, r Result) {
	if r.Error != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), errPrefix("error:"), r.Error)
		return
	}
	if r.Tree != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s : ", r.Tree)
	}
	fmt.Fprintln(cmd.OutOrStdout(), r.Value)
}

// interactive reads and evaluates one expression per line until EOF.
func interactive(cmd *cobra.Command, ctx *varcalc.Context) error {
	out := cmd.OutOrStdout()
	sc := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		printResult(cmd, evaluate(ctx, line))
	}
}

// isTerminal reports whether r is a terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
