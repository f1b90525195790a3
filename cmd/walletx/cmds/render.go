package cmds

import (
	"fmt"
	"io"

	"github.com/mdp/qrterminal/v3"
	"github.com/pandodao/walletx/core"
)

func render(w io.Writer, snap core.Snapshot, qr bool) {
	fmt.Fprintf(w, "Current Balance: %s Tokens\n", snap.Balance.String())

	switch {
	case snap.Authenticated:
		fmt.Fprintf(w, "Session: %s as %s\n", snap.State, snap.Principal)
	default:
		fmt.Fprintf(w, "Session: %s\n", snap.State)
	}

	if snap.DepositAddress != "" {
		fmt.Fprintf(w, "Deposit Address: %s\n", snap.DepositAddress)
		if qr {
			qrterminal.GenerateHalfBlock(snap.DepositAddress, qrterminal.L, w)
		}
	}

	if snap.LastError != nil {
		fmt.Fprintf(w, "Error: %s\n", snap.LastError.Error())
	}
}
