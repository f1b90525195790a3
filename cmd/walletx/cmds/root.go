package cmds

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pandodao/walletx/coordinator"
	"github.com/spf13/cobra"
)

const prompt = "walletx> "

type Options struct {
	// QR renders the deposit address as a terminal qr code.
	QR bool
}

type Cmd struct {
	Coordinator *coordinator.Coordinator
	Options     Options
}

// Run fetches the initial balance and executes args, starting the
// interactive shell when no command is given.
func (c *Cmd) Run(ctx context.Context, args []string) error {
	return c.execute(ctx, args, os.Stdin, os.Stdout)
}

func (c *Cmd) execute(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	root := c.intentRoot()
	root.SilenceErrors = false
	root.RunE = c.runShell
	root.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "interactive wallet session",
		RunE:  c.runShell,
	})

	if args == nil {
		args = []string{}
	}

	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(in)

	c.Coordinator.Initialize(ctx)
	return root.ExecuteContext(ctx)
}

func (c *Cmd) runShell(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	render(out, c.Coordinator.Snapshot(), false)
	fmt.Fprint(out, prompt)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		switch line := strings.TrimSpace(scanner.Text()); line {
		case "":
		case "quit", "exit":
			return nil
		default:
			sub := c.intentRoot()
			sub.SetArgs(strings.Fields(line))
			sub.SetOut(out)
			sub.SetErr(out)
			if err := sub.ExecuteContext(ctx); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		fmt.Fprint(out, prompt)
	}

	return scanner.Err()
}

// intentRoot builds the command tree forwarding user intents to the coordinator.
func (c *Cmd) intentRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "walletx",
		Short:         "walletx client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(c.statusCmd())
	root.AddCommand(c.balanceCmd())
	root.AddCommand(c.loginCmd())
	root.AddCommand(c.logoutCmd())
	root.AddCommand(c.addressCmd())
	root.AddCommand(c.depositCmd())
	root.AddCommand(c.transferCmd())

	return root
}

func jsonPrint(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
