package cmds

import (
	"fmt"

	"github.com/pandodao/walletx/core"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (c *Cmd) statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "show the current session and wallet state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := c.Coordinator.Snapshot()
			if asJSON {
				return jsonPrint(cmd, snap)
			}

			render(cmd.OutOrStdout(), snap, c.Options.QR)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as json")
	return cmd
}

func (c *Cmd) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "fetch the current balance",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			render(cmd.OutOrStdout(), c.Coordinator.Initialize(cmd.Context()), false)
		},
	}
}

func (c *Cmd) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "login with the identity provider",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("waiting for the identity provider ...")
			render(cmd.OutOrStdout(), c.Coordinator.Login(cmd.Context()), c.Options.QR)
		},
	}
}

func (c *Cmd) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "drop the current session",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			render(cmd.OutOrStdout(), c.Coordinator.Logout(), false)
		},
	}
}

func (c *Cmd) addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address [principal]",
		Short: "derive the deposit address, of the current principal by default",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			principal := c.Coordinator.Snapshot().Principal
			if len(args) == 1 {
				principal = core.Principal(args[0])
			}

			render(cmd.OutOrStdout(), c.Coordinator.DeriveAddress(cmd.Context(), principal), c.Options.QR)
		},
	}
}

func (c *Cmd) depositCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <account> <amount_kes>",
		Short: "deposit KES into account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			render(cmd.OutOrStdout(), c.Coordinator.SubmitDeposit(cmd.Context(), args[0], amount), false)
			return nil
		},
	}
}

func (c *Cmd) transferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <from> <to> <amount>",
		Short: "transfer tokens between accounts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}

			render(cmd.OutOrStdout(), c.Coordinator.SubmitTransfer(cmd.Context(), args[0], args[1], amount), false)
			return nil
		},
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}

	return amount, nil
}
