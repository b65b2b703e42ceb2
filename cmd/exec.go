package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bavini/pty"
	"bavini/session"
	"bavini/shell"
)

var execCmd = &cobra.Command{
	Use:   "exec CMDLINE...",
	Short: "Run one shell pipeline and exit with its status",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
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

	line := strings.Join(args, " ")
	executor := pty.NewExecutor(sess.Mounts, sess.Registry, logger)
	state := shell.NewState(cfg.EnvOverrides())

	res := executor.ExecuteLine(ctx, line, state,
		func(s string) { os.Stdout.WriteString(s) },
		func(s string) { os.Stderr.WriteString(s) },
		80, 24)

	if res.ExitCode != 0 {
		sess.Close(ctx)
		os.Exit(res.ExitCode)
	}
	return nil
}
