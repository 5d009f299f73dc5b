package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/parsegraph/pkg/render"
	"github.com/matzehuels/parsegraph/pkg/render/dot"
	"github.com/matzehuels/parsegraph/pkg/render/nodelink"
	"github.com/matzehuels/parsegraph/pkg/viewer"
)

// renderSurface is the surface used for one-off renders.
const renderSurface = "graph"

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output  string  // output file path, "-" for stdout
	format  string  // svg, pdf or png
	scale   float64 // PNG scale factor
	fixOnly bool    // print the repaired DOT instead of rendering
}

// renderCommand creates the render command for DOT files.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{format: string(render.FormatSVG), scale: 2}

	cmd := &cobra.Command{
		Use:   "render [file.dot]",
		Short: "Repair and render a DOT graph",
		Long: `Repair common defects in a Graphviz DOT file (broken label quoting, HTML
entities, missing semicolons) and render it.

Without -o the output is written next to the input with the format's
extension. Use "-" as input to read standard input.`,
		Example: `  parsegraph render tree.dot
  parsegraph render --format png -o tree.png tree.dot
  parsegraph render --fix-only broken.dot > fixed.dot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `output file ("-" for stdout)`)
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: svg, pdf or png")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")
	cmd.Flags().BoolVar(&opts.fixOnly, "fix-only", false, "print the repaired DOT without rendering")

	return cmd
}

// runRender sanitizes the DOT text from input and renders it.
func runRender(ctx context.Context, cmd *cobra.Command, input string, opts renderOpts) error {
	logger := loggerFromContext(ctx)

	format, err := render.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	src, err := readDOT(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}

	fixed, warn := dot.Sanitize(src)
	if warn != nil {
		logger.Warn("DOT repair failed, using original text", "error", warn)
	}
	for _, w := range dot.Validate(fixed) {
		printWarning("%s", w)
	}

	if opts.fixOnly {
		_, err := io.WriteString(cmd.OutOrStdout(), fixed)
		return err
	}

	gv := nodelink.NewGraphviz()
	defer gv.Close()
	engine := viewer.New(gv, viewer.Options{Logger: logger})

	// Render sanitizes again; repairs are idempotent so this is a no-op.
	_ = engine.Render(ctx, fixed, renderSurface)
	if view, _ := engine.Surface(renderSurface); view.Status != viewer.StatusRendered {
		return fmt.Errorf("render %s: %s", input, view.Message)
	}
	exp, err := engine.ExportAs(renderSurface, format, opts.scale)
	if err != nil {
		return err
	}
	logger.Debugf("Generated %s: %d bytes", format, len(exp.Data))

	path := opts.output
	if path == "" {
		if input == stdinName {
			path = stdinName
		} else {
			path = basePath(input) + "." + string(format)
		}
	}
	if path == stdinName {
		_, err := cmd.OutOrStdout().Write(exp.Data)
		return err
	}
	if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
		return err
	}
	printSuccess("Rendered %s", input)
	printFile(path)
	return nil
}

func readDOT(stdin io.Reader, input string) (string, error) {
	var (
		data []byte
		err  error
	)
	if input == stdinName {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", input, err)
	}
	return string(data), nil
}

// basePath strips the extension from the input path.
func basePath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input))
}
