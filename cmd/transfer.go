package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bavini/session"
	"bavini/util"
)

var exportCmd = &cobra.Command{
	Use:   "export [PATH]",
	Short: "Dump the UTF-8 file subtree as JSON on stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
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

	root := "/"
	if len(args) == 1 {
		root = args[0]
	}
	snapshot, err := sess.Mounts.ToJSON(ctx, root)
	if err != nil {
		return fmt.Errorf("export %s: %w", root, err)
	}
	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

var importForce bool

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load a JSON snapshot into the mounted filesystem",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().BoolVarP(&importForce, "force", "f", false, "overwrite existing files without asking")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadSetup()
	if err != nil {
		return err
	}
	ctx := context.Background()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var snapshot map[string]string
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	sess, err := session.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	if !importForce {
		conflicts := 0
		for path := range snapshot {
			if ok, _ := sess.Mounts.Exists(ctx, path); ok {
				conflicts++
			}
		}
		if conflicts > 0 {
			prompt := fmt.Sprintf("%d files already exist and will be overwritten. Continue?", conflicts)
			if !util.AskYN(prompt, false) {
				return fmt.Errorf("import aborted")
			}
		}
	}

	if err := sess.Mounts.FromJSON(ctx, snapshot); err != nil {
		return err
	}
	fmt.Printf("imported %d files\n", len(snapshot))
	return nil
}
