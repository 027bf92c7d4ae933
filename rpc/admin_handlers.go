package rpc

import (
	"math/big"
	"net/http"
	"strings"
)

// Administrative handlers. The bearer token has already been checked by the
// dispatcher; engine-level admin checks still run with the configured
// administrator identity as the caller.

func (s *Server) handleSetAssetSupported(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Asset     string `json:"asset"`
		Supported bool   `json:"supported"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	if err := s.lending.SetAssetSupported(s.admin, params.Asset, params.Supported); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetInterestRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Asset   string `json:"asset"`
		RateBps uint64 `json:"rateBps"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	if err := s.lending.SetInterestRate(s.admin, params.Asset, params.RateBps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetLiquidationThreshold(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		// ThresholdMilli is the scaled health factor boundary in
		// thousandths: 1000 == 1.0.
		ThresholdMilli uint64 `json:"thresholdMilli"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	threshold := new(big.Int).SetUint64(params.ThresholdMilli)
	threshold.Mul(threshold, big.NewInt(1e15))
	if err := s.lending.SetLiquidationThreshold(s.admin, threshold); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetLiquidationBonus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		BonusBps uint64 `json:"bonusBps"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	if err := s.lending.SetLiquidationBonus(s.admin, params.BonusBps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetPrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Asset string `json:"asset"`
		// Rate is a decimal fraction, e.g. "3/2" or "1".
		Rate   string `json:"rate"`
		Source string `json:"source"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	rate, ok := new(big.Rat).SetString(strings.TrimSpace(params.Rate))
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid rate", params.Rate)
		return
	}
	if err := s.oracle.SetPrice(params.Asset, rate, params.Source); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		To     string `json:"to"`
		Asset  string `json:"asset"`
		Amount string `json:"amount"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	to, err := parseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	if err := s.lending.Mint(s.admin, to, params.Asset, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Module string `json:"module"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	s.pauses.Pause(strings.TrimSpace(params.Module))
	writeResult(w, req.ID, true)
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Module string `json:"module"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	s.pauses.Resume(strings.TrimSpace(params.Module))
	writeResult(w, req.ID, true)
}

func (s *Server) handleGrantScorer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Address string `json:"address"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	s.allow.Grant(addr)
	writeResult(w, req.ID, true)
}

func (s *Server) handleRevokeScorer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Address string `json:"address"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	s.allow.Revoke(addr)
	writeResult(w, req.ID, true)
}
