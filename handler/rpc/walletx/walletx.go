// Package walletx holds the JSON messages of the walletx.WalletService rpc,
// served with the twirp JSON protocol.
package walletx

import "strings"

const (
	ServiceName   = "walletx.WalletService"
	DefaultPrefix = "/twirp"

	MethodGetBalance        = "GetBalance"
	MethodGetDepositAddress = "GetDepositAddress"
	MethodDeposit           = "Deposit"
	MethodTransfer          = "Transfer"

	PrincipalHeader   = "Walletx-Principal"
	IdempotencyHeader = "Idempotency-Key"
)

// MethodPath returns the url path of method under prefix,
// like /twirp/walletx.WalletService/GetBalance.
func MethodPath(prefix, method string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + ServiceName + "/" + method
}

type GetBalanceRequest struct{}

type GetBalanceResponse struct {
	Balance string `json:"balance"`
}

type GetDepositAddressRequest struct {
	Principal string `json:"principal"`
}

type GetDepositAddressResponse struct {
	Address string `json:"address"`
}

type DepositRequest struct {
	Account   string `json:"account"`
	AmountKes string `json:"amount_kes"`
}

type DepositResponse struct{}

type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TransferResponse struct{}
