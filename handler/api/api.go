package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pandodao/walletx/core"
	"github.com/pandodao/walletx/handler/rpc"
	"github.com/pandodao/walletx/handler/rpc/walletx"
	"github.com/twitchtv/twirp"
)

func New(rpcServer *rpc.Server) *Server {
	return &Server{rpc: rpcServer}
}

// Server exposes the wallet rpc as plain REST routes.
type Server struct {
	rpc *rpc.Server
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/balance", s.getBalance)
	r.Get("/addresses/{principal}", s.getDepositAddress)
	r.Post("/deposits", s.deposit)
	r.Post("/transfers", s.transfer)

	return r
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	ctx := core.WithPrincipal(r.Context(), core.Principal(r.Header.Get(walletx.PrincipalHeader)))
	resp, err := s.rpc.GetBalance(ctx, &walletx.GetBalanceRequest{})
	render(w, resp, err)
}

func (s *Server) getDepositAddress(w http.ResponseWriter, r *http.Request) {
	resp, err := s.rpc.GetDepositAddress(r.Context(), &walletx.GetDepositAddressRequest{
		Principal: chi.URLParam(r, "principal"),
	})
	render(w, resp, err)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req walletx.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render(w, nil, twirp.Malformed.Error("invalid json body"))
		return
	}

	resp, err := s.rpc.Deposit(r.Context(), &req)
	render(w, resp, err)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req walletx.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render(w, nil, twirp.Malformed.Error("invalid json body"))
		return
	}

	resp, err := s.rpc.Transfer(r.Context(), &req)
	render(w, resp, err)
}

func render(w http.ResponseWriter, v any, err error) {
	if err != nil {
		_ = twirp.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
