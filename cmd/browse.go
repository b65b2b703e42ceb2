package cmd

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"bavini/mount"
	"bavini/session"
	"bavini/util"
	"bavini/vpath"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the mounted filesystem in a tree view",
	RunE:  runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadSetup()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sess, err := session.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	app := tview.NewApplication()

	root := tview.NewTreeNode("/").
		SetColor(tcell.ColorYellow).
		SetReference("/")
	loadChildren(ctx, sess.Mounts, root)

	tree := tview.NewTreeView().
		SetRoot(root).
		SetCurrentNode(root)
	tree.SetBorder(true).SetTitle(" bavini filesystem ").SetTitleAlign(tview.AlignLeft)

	// Directories load lazily on first expansion.
	tree.SetSelectedFunc(func(node *tview.TreeNode) {
		if node.GetReference() == nil {
			return
		}
		if len(node.GetChildren()) == 0 {
			loadChildren(ctx, sess.Mounts, node)
		}
		node.SetExpanded(!node.IsExpanded())
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' || event.Rune() == 'Q' {
				app.Stop()
				return nil
			}
		}
		return event
	})

	return app.SetRoot(tree, true).Run()
}

// loadChildren populates a tree node with the directory's entries.
func loadChildren(ctx context.Context, m *mount.Manager, node *tview.TreeNode) {
	path, ok := node.GetReference().(string)
	if !ok {
		return
	}
	entries, err := m.ReadDirTypes(ctx, path)
	if err != nil {
		node.AddChild(tview.NewTreeNode(fmt.Sprintf("[red]%v", err)))
		return
	}
	for _, e := range entries {
		child := vpath.Join(path, e.Name)
		n := tview.NewTreeNode(e.Name).SetReference(child)
		if e.IsDir {
			n.SetColor(tcell.ColorAqua).SetSelectable(true)
		} else {
			if st, err := m.Stat(ctx, child); err == nil {
				n.SetText(fmt.Sprintf("%s (%s)", e.Name, util.HumanSize(st.Size)))
			}
		}
		node.AddChild(n)
	}
}
