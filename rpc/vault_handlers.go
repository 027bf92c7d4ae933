package rpc

import (
	"net/http"
	"strings"

	"creditlend/native/lending"
	"creditlend/native/vault"
)

// Savings vault handlers. Deposits custody funds with the vault treasury and
// feed the depositor's savings history; withdrawals release them.

type vaultBalanceResult struct {
	Shares string `json:"shares"`
	Assets string `json:"assets"`
}

type vaultDepositResult struct {
	SharesMinted string `json:"sharesMinted"`
}

type vaultWithdrawResult struct {
	AssetsReturned string `json:"assetsReturned"`
}

type vaultBoostResult struct {
	BoostBps uint64 `json:"boostBps"`
}

func (s *Server) vaultFor(asset string) (*vault.Vault, error) {
	v, ok := s.vaults[lending.NormalizeAsset(asset)]
	if !ok || v == nil {
		return nil, lending.ErrUnsupportedAsset
	}
	return v, nil
}

func (s *Server) handleVaultDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, asset, amount, ok := s.decodeAmountCall(w, req)
	if !ok {
		return
	}
	v, err := s.vaultFor(asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	minted, err := v.Deposit(addr, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vaultDepositResult{SharesMinted: minted.String()})
}

func (s *Server) handleVaultWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		From   string `json:"from"`
		Asset  string `json:"asset"`
		Shares string `json:"shares"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	addr, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	shares, err := parseAmount(params.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	v, err := s.vaultFor(params.Asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	assets, err := v.Withdraw(addr, shares)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vaultWithdrawResult{AssetsReturned: assets.String()})
}

func (s *Server) handleVaultGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params accountAssetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	v, err := s.vaultFor(params.Asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	shares := v.SharesOf(addr)
	assets := v.ConvertToAssets(shares)
	writeResult(w, req.ID, vaultBalanceResult{Shares: shares.String(), Assets: assets.String()})
}

func (s *Server) handleVaultGetBoost(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params accountAssetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	v, err := s.vaultFor(params.Asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	boost, err := v.BoostBps(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vaultBoostResult{BoostBps: boost})
}

// handleAddYield moves earned yield from the administrator into the vault
// treasury and folds it into the exchange rate.
func (s *Server) handleAddYield(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Asset  string `json:"asset"`
		Amount string `json:"amount"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	amount, err := parseAmount(strings.TrimSpace(params.Amount))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	v, err := s.vaultFor(params.Asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if err := s.lending.TransferFunds(s.admin, v.Treasury(), params.Asset, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if err := v.AccrueYield(amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}
