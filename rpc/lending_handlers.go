package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"creditlend/crypto"
	"creditlend/native/lending"
	"creditlend/observability/metrics"
)

type accountAssetParams struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
}

type amountParams struct {
	From   string `json:"from"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type liquidateParams struct {
	Liquidator string `json:"liquidator"`
	Borrower   string `json:"borrower"`
	Asset      string `json:"asset"`
	Amount     string `json:"amount"`
}

type positionResult struct {
	Position *lending.Position `json:"position"`
}

type reserveResult struct {
	Reserve *lending.Reserve `json:"reserve"`
}

type repayResult struct {
	Repaid string `json:"repaid"`
}

type liquidateResult struct {
	DebtRepaid       string `json:"debtRepaid"`
	CollateralSeized string `json:"collateralSeized"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("expected a single parameter object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(raw string) (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(raw))
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, errors.New("amount must be a base-10 integer")
	}
	return amount, nil
}

func (s *Server) decodeAmountCall(w http.ResponseWriter, req *RPCRequest) (crypto.Address, string, *big.Int, bool) {
	var params amountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return crypto.Address{}, "", nil, false
	}
	addr, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return crypto.Address{}, "", nil, false
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return crypto.Address{}, "", nil, false
	}
	return addr, params.Asset, amount, true
}


// publishPoolTotals refreshes the per-asset reserve gauges after a mutating
// operation.
func (s *Server) publishPoolTotals(asset string) {
	reserve, err := s.lending.GetReserve(asset)
	if err != nil {
		return
	}
	collateral, _ := new(big.Float).SetInt(reserve.TotalCollateral).Float64()
	borrowed, _ := new(big.Float).SetInt(reserve.TotalBorrowed).Float64()
	metrics.Lending().SetPoolTotals(reserve.Asset, collateral, borrowed)
}

func (s *Server) handleDepositCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, asset, amount, ok := s.decodeAmountCall(w, req)
	if !ok {
		return
	}
	if err := s.lending.DepositCollateral(addr, asset, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.publishPoolTotals(asset)
	writeResult(w, req.ID, true)
}

func (s *Server) handleWithdrawCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, asset, amount, ok := s.decodeAmountCall(w, req)
	if !ok {
		return
	}
	if err := s.lending.WithdrawCollateral(addr, asset, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.publishPoolTotals(asset)
	writeResult(w, req.ID, true)
}

func (s *Server) handleBorrow(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, asset, amount, ok := s.decodeAmountCall(w, req)
	if !ok {
		return
	}
	if err := s.lending.Borrow(addr, asset, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.publishPoolTotals(asset)
	writeResult(w, req.ID, true)
}

func (s *Server) handleRepay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, asset, amount, ok := s.decodeAmountCall(w, req)
	if !ok {
		return
	}
	repaid, err := s.lending.Repay(addr, asset, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.publishPoolTotals(asset)
	writeResult(w, req.ID, repayResult{Repaid: repaid.String()})
}

func (s *Server) handleFundReserve(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, asset, amount, ok := s.decodeAmountCall(w, req)
	if !ok {
		return
	}
	if err := s.lending.FundReserve(addr, asset, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleLiquidate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params liquidateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	liquidator, err := parseAddress(params.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid liquidator address", err.Error())
		return
	}
	borrower, err := parseAddress(params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid borrower address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	repaid, seized, err := s.lending.Liquidate(liquidator, borrower, params.Asset, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Lending().ObserveLiquidation()
	s.publishPoolTotals(params.Asset)
	writeResult(w, req.ID, liquidateResult{
		DebtRepaid:       repaid.String(),
		CollateralSeized: seized.String(),
	})
}

func (s *Server) decodeAccountAsset(w http.ResponseWriter, req *RPCRequest) (crypto.Address, string, bool) {
	var params accountAssetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return crypto.Address{}, "", false
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return crypto.Address{}, "", false
	}
	return addr, params.Asset, true
}

func (s *Server) handleGetPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, asset, ok := s.decodeAccountAsset(w, req)
	if !ok {
		return
	}
	pos, err := s.lending.GetPosition(addr, asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionResult{Position: pos})
}

func (s *Server) handleGetReserve(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Asset string `json:"asset"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	reserve, err := s.lending.GetReserve(params.Asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, reserveResult{Reserve: reserve})
}

func (s *Server) handleGetHealthFactor(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, asset, ok := s.decodeAccountAsset(w, req)
	if !ok {
		return
	}
	hf, err := s.lending.HealthFactor(addr, asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, hf.String())
}

func (s *Server) handleGetMaxBorrow(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, asset, ok := s.decodeAccountAsset(w, req)
	if !ok {
		return
	}
	max, err := s.lending.MaxBorrowAmount(addr, asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, max.String())
}

func (s *Server) handleIsLiquidatable(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, asset, ok := s.decodeAccountAsset(w, req)
	if !ok {
		return
	}
	liquidatable, err := s.lending.IsLiquidatable(addr, asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, liquidatable)
}

func (s *Server) handleCalculateInterest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, asset, ok := s.decodeAccountAsset(w, req)
	if !ok {
		return
	}
	interest, err := s.lending.CalculateInterest(addr, asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, interest.String())
}
