package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/parsegraph/pkg/analysis"
	perrors "github.com/matzehuels/parsegraph/pkg/errors"
	"github.com/matzehuels/parsegraph/pkg/render"
	"github.com/matzehuels/parsegraph/pkg/render/nodelink"
	"github.com/matzehuels/parsegraph/pkg/viewer"
)

const (
	outputText = "text" // styled summary
	outputJSON = "json" // raw results

	// maxConcurrent bounds parallel backend requests for multi-file runs.
	maxConcurrent = 4

	stdinName = "-"
)

// analyzeOpts holds the command-line flags for the analyze command.
type analyzeOpts struct {
	backend     backendFlags
	output      string // text or json
	outDir      string // directory for rendered graphs, empty to skip
	graphFormat string // svg, pdf or png
	tokens      bool   // print the token stream
	tree        bool   // print the parenthesised parse tree
}

// fileResult is the outcome of analysing one input.
type fileResult struct {
	Name   string           `json:"file"`
	Cached bool             `json:"cached"`
	Result *analysis.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`

	err error
}

// analyzeCommand creates the analyze command.
func (c *CLI) analyzeCommand() *cobra.Command {
	opts := analyzeOpts{output: outputText, graphFormat: string(render.FormatSVG)}

	cmd := &cobra.Command{
		Use:   "analyze [file...]",
		Short: "Analyse source files with the backend",
		Long: `Analyse one or more source files with the analysis backend.

Tokens, diagnostics and the parse tree are printed per file. With --out the
parse tree and AST graphs are rendered into that directory. Use "-" (or no
arguments) to read from standard input.`,
		Example: `  parsegraph analyze main.rs
  parsegraph analyze --tokens --tree src/*.rs
  parsegraph analyze --out graphs --graph-format png main.rs
  echo 'fn main() {}' | parsegraph analyze --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{stdinName}
			}
			return c.runAnalyze(cmd.Context(), cmd, args, opts)
		},
	}

	opts.backend.register(cmd)
	cmd.Flags().StringVar(&opts.output, "format", opts.output, "output format: text or json")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "write rendered graphs to this directory")
	cmd.Flags().StringVar(&opts.graphFormat, "graph-format", opts.graphFormat, "graph file format: svg, pdf or png")
	cmd.Flags().BoolVar(&opts.tokens, "tokens", false, "print the token stream")
	cmd.Flags().BoolVar(&opts.tree, "tree", false, "print the parse tree")

	return cmd
}

func (c *CLI) runAnalyze(ctx context.Context, cmd *cobra.Command, args []string, opts analyzeOpts) error {
	if opts.output != outputText && opts.output != outputJSON {
		return fmt.Errorf("invalid --format %q (want text or json)", opts.output)
	}
	format, err := render.ParseFormat(opts.graphFormat)
	if err != nil {
		return err
	}

	logger := loggerFromContext(ctx)
	svc, _, err := c.newService(ctx, &opts.backend)
	if err != nil {
		return err
	}
	loadCache(logger, svc)
	defer saveCache(logger, svc)

	inputs, err := readInputs(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	var onDone func(done, total int)
	if opts.output == outputText {
		spinner := newSpinner(ctx, fmt.Sprintf("Analysing %d file(s) with %s...", len(inputs), svc.BaseURL()))
		spinner.Start()
		defer spinner.Stop()
		onDone = func(done, total int) {
			spinner.Update(fmt.Sprintf("Analysed %d/%d file(s)...", done, total))
			if done == total {
				spinner.Stop()
			}
		}
	}
	prog := newProgress(logger)
	results, err := analyzeAll(ctx, svc, inputs, onDone)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
		}
	}
	prog.done("Analysis finished", "files", len(results), "failed", failed)

	if opts.outDir != "" {
		if err := writeGraphs(ctx, logger, opts.outDir, format, results); err != nil {
			return err
		}
	}

	if opts.output == outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printFileResult(r, opts)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
	}
	return nil
}

type input struct {
	name string
	code string
}

func readInputs(stdin io.Reader, args []string) ([]input, error) {
	inputs := make([]input, 0, len(args))
	for _, arg := range args {
		var (
			data []byte
			err  error
		)
		if arg == stdinName {
			data, err = io.ReadAll(stdin)
			arg = "stdin"
		} else {
			data, err = os.ReadFile(arg)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", arg, err)
		}
		inputs = append(inputs, input{name: arg, code: string(data)})
	}
	return inputs, nil
}

// analyzeAll analyses inputs concurrently. Per-file failures are recorded in
// the results; only cancellation aborts the batch. onDone, if set, is called
// after each input finishes.
func analyzeAll(ctx context.Context, svc *analysis.Service, inputs []input, onDone func(done, total int)) ([]fileResult, error) {
	results := make([]fileResult, len(inputs))
	var finished atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, in := range inputs {
		g.Go(func() error {
			res, cached, err := svc.AnalyzeWithCacheInfo(gctx, in.code)
			if perrors.Cancelled(err) {
				return context.Canceled
			}
			r := fileResult{Name: in.name, Cached: cached, err: err}
			if err != nil {
				r.Error = perrors.UserMessage(err)
			} else {
				r.Result = &res
			}
			results[i] = r
			if onDone != nil {
				onDone(int(finished.Add(1)), len(inputs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// writeGraphs renders the parse tree and AST of each successful result into
// dir as <file>.parse-tree.<ext> and <file>.ast.<ext>.
func writeGraphs(ctx context.Context, logger *log.Logger, dir string, format render.Format, results []fileResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	gv := nodelink.NewGraphviz()
	defer gv.Close()
	engine := viewer.New(gv, viewer.Options{Logger: logger})

	for _, r := range results {
		if r.Result == nil {
			continue
		}
		engine.ShowResult(ctx, *r.Result)
		base := strings.TrimSuffix(filepath.Base(r.Name), filepath.Ext(r.Name))

		for _, id := range []string{viewer.SurfaceParseTree, viewer.SurfaceAST} {
			view, _ := engine.Surface(id)
			if view.Status != viewer.StatusRendered {
				if view.Status != viewer.StatusEmpty {
					logger.Warn("graph not written", "file", r.Name, "graph", id, "reason", view.Message)
				}
				continue
			}
			exp, err := engine.ExportAs(id, format, 2)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, fmt.Sprintf("%s.%s.%s", base, id, format))
			if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
				return err
			}
			printFile(path)
		}
		engine.Clear()
	}
	return nil
}

func printFileResult(r fileResult, opts analyzeOpts) {
	if r.err != nil {
		printError("%s: %s", r.Name, r.Error)
		return
	}
	res := r.Result
	if len(res.Errors) == 0 && res.Success {
		printSuccess("%s", r.Name)
	} else {
		printWarning("%s", r.Name)
	}
	printStats(*res, r.Cached)
	printDiagnostics(r.Name, res.Errors)
	if opts.tokens {
		printTokens(res.Tokens)
	}
	if opts.tree {
		printTree(res.ParseTree.Lisp)
	}
}
