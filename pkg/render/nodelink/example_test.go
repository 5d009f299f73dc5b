package nodelink_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/parsegraph/pkg/render/dot"
	"github.com/matzehuels/parsegraph/pkg/render/nodelink"
)

func ExampleGraphviz_RenderSVG() {
	// Parse trees from the backend are repaired before rendering
	fixed, _ := dot.Sanitize("digraph ParseTree {\n  program->fn\n  fn->main\n}")

	r := nodelink.NewGraphviz()
	defer r.Close()

	svg, err := r.RenderSVG(context.Background(), fixed)
	if err != nil {
		fmt.Println("render failed:", err)
		return
	}
	fmt.Println(strings.HasPrefix(strings.TrimSpace(string(svg)), "<?xml") || strings.Contains(string(svg), "<svg"))
	// Output:
	// true
}
