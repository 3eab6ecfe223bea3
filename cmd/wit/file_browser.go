package main

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell"
	"github.com/rivo/tview"

	"github.com/wiimm/witcore/internal/pipeline"
)

// runFileBrowser renders m as a tcell/tview tree the user can navigate
// with arrow keys; selecting a leaf shows its size in the app's status
// line. This backs LIST/FILES' --interactive mode, part of the CLI
// assembly layer rather than the disc-format core itself, built from
// tview's documented tree-view shape (NewTreeNode/SetReference/AddChild).
func runFileBrowser(m *pipeline.FileMap) error {
	root := tview.NewTreeNode(".").SetColor(tcell.ColorYellow)
	tree := tview.NewTreeView().SetRoot(root).SetCurrentNode(root)

	dirs := map[string]*tview.TreeNode{"": root}
	dirNode := func(path string) *tview.TreeNode {
		if n, ok := dirs[path]; ok {
			return n
		}
		parent := ""
		if i := strings.LastIndex(path, "/"); i >= 0 {
			parent = path[:i]
		}
		name := path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			name = path[i+1:]
		}
		n := tview.NewTreeNode(name).SetColor(tcell.ColorGreen).SetSelectable(true)
		dirNode(parent).AddChild(n)
		dirs[path] = n
		return n
	}

	for _, e := range m.Entries {
		parent := ""
		if i := strings.LastIndex(e.Path, "/"); i >= 0 {
			parent = e.Path[:i]
		}
		name := e.Path
		if i := strings.LastIndex(e.Path, "/"); i >= 0 {
			name = e.Path[i+1:]
		}
		leaf := tview.NewTreeNode(fmt.Sprintf("%s (%d)", name, e.Size)).SetSelectable(true)
		dirNode(parent).AddChild(leaf)
	}

	app := tview.NewApplication()
	tree.SetSelectedFunc(func(node *tview.TreeNode) {
		node.SetExpanded(!node.IsExpanded())
	})
	tree.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})
	return app.SetRoot(tree, true).SetFocus(tree).Run()
}
