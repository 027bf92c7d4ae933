package rpc

import (
	"net/http"

	"creditlend/native/credit"
	"creditlend/observability/metrics"
)

type creditScoreResult struct {
	Score uint64 `json:"score"`
}

type creditBreakdownResult struct {
	Breakdown credit.Breakdown `json:"breakdown"`
}

func (s *Server) handleCreditGetScore(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	score, err := s.scores.Score(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, creditScoreResult{Score: score})
}

func (s *Server) handleCreditGetBreakdown(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	breakdown, err := s.scores.Breakdown(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Lending().ObserveScoreRecompute()
	writeResult(w, req.ID, creditBreakdownResult{Breakdown: breakdown})
}
