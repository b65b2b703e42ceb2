package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bavini/pty"
	"bavini/session"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell on the virtual filesystem",
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
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

	stdin := int(os.Stdin.Fd())
	if !term.IsTerminal(stdin) {
		return fmt.Errorf("shell requires a terminal; use `bavini exec` for scripted runs")
	}
	oldState, err := term.MakeRaw(stdin)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer term.Restore(stdin, oldState)

	if cols, rows, err := term.GetSize(stdin); err == nil {
		sess.PTY.Resize(cols, rows)
	}

	done := make(chan struct{})
	sess.PTY.SetOutput(func(ev pty.Event) {
		os.Stdout.WriteString(lfToCRLF(ev.Data))
	})
	sess.PTY.OnExit(func() { close(done) })
	sess.PTY.Start()

	// Reader goroutine: raw bytes go straight into the PTY.
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			sess.PTY.Write(buf[:n])
		}
	}()

	<-done
	os.Stdout.WriteString("\r\n")
	return nil
}

// lfToCRLF adapts builtin output for a raw-mode terminal: every bare LF
// becomes CRLF, existing CRLF pairs pass through.
func lfToCRLF(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' && (i == 0 || s[i-1] != '\r') {
			b.WriteByte('\r')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
