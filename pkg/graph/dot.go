package graph

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// dotPalette cycles through a small set of Graphviz color names; the exact
// hues don't matter, only that adjacent colors in ColorByLeadingEdge's
// index space are visually distinct.
var dotPalette = []string{
	"red", "blue", "green", "orange", "purple", "cyan", "magenta", "brown",
}

// ExportDot writes g in Graphviz DOT format to w, coloring each node by the
// leading-edge group (from colors) that the path to it belongs to (§6).
// Nodes not reachable from any colored leading edge are left uncolored,
// except the root, which is filled with the color of one of its leading
// edges.
func ExportDot(g *Graph, colors map[EdgeKey]int, w io.Writer) error {
	if _, err := fmt.Fprintln(w, "digraph stat_graph {"); err != nil {
		return err
	}

	nodeColor := make(map[uint64]string)
	for key, idx := range colors {
		c := dotPalette[idx%len(dotPalette)]
		var walk func(id uint64)
		walk = func(id uint64) {
			if _, done := nodeColor[id]; done {
				return
			}
			nodeColor[id] = c
			for _, e := range g.ChildrenOf(id) {
				walk(e.Child)
			}
		}
		nodeColor[key.Parent] = c
		walk(key.Child)
	}

	for _, n := range g.Nodes() {
		label := n.Name
		if n.Source != "" {
			label = fmt.Sprintf("%s\\n%s:%d", n.Name, n.Source, n.Line)
		}
		if c, ok := nodeColor[n.ID]; ok {
			if _, err := fmt.Fprintf(w, "  n%d [label=%q, style=filled, fillcolor=%q];\n", n.ID, label, c); err != nil {
				return err
			}
		} else {
			if _, err := fmt.Fprintf(w, "  n%d [label=%q];\n", n.ID, label); err != nil {
				return err
			}
		}
	}

	for _, e := range g.Edges() {
		if _, err := fmt.Fprintf(w, "  n%d -> n%d [label=%q];\n", e.Parent, e.Child, e.Label.ToText()); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// DotFilename builds the emitted filename per §6's pattern:
// <outdir>/<prefix>[_<n>].{2D,3D}.dot. n is omitted for the first sample of
// a run (n == 0); is3D selects the suffix used for accumulated watch-mode
// graphs (§4.15) versus a single gather round.
func DotFilename(outdir, prefix string, n int, is3D bool) string {
	suffix := "2D"
	if is3D {
		suffix = "3D"
	}
	name := prefix
	if n > 0 {
		name = fmt.Sprintf("%s_%d", prefix, n)
	}
	return filepath.Join(outdir, fmt.Sprintf("%s.%s.dot", name, suffix))
}

// ExportDotFile renders g to the file named by DotFilename, creating parent
// directories as needed.
func ExportDotFile(g *Graph, colors map[EdgeKey]int, outdir, prefix string, n int, is3D bool) (string, error) {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return "", fmt.Errorf("graph: creating output directory %s: %w", outdir, err)
	}
	path := DotFilename(outdir, prefix, n, is3D)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("graph: creating dot file %s: %w", path, err)
	}
	defer f.Close()

	if err := ExportDot(g, colors, f); err != nil {
		return "", fmt.Errorf("graph: writing dot file %s: %w", path, err)
	}
	return path, nil
}
