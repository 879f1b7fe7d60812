package rpc

import (
	"net/http"

	"tenorbook/native/credit"
)

type addressParams struct {
	Address string `json:"address"`
}

type positionIDParams struct {
	PositionID uint64 `json:"positionId"`
}

func (s *Server) handleGetUser(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	s.mu.Lock()
	user, err := s.engine.UserByAddress(addr)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, "credit_getUser", err)
		return
	}
	writeResult(w, req.ID, user)
}

func (s *Server) handleGetDebtPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params positionIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	s.mu.Lock()
	position, err := s.engine.DebtPositionByID(params.PositionID)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, "credit_getDebtPosition", err)
		return
	}
	writeResult(w, req.ID, position)
}

func (s *Server) handleGetCreditPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params positionIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	s.mu.Lock()
	position, err := s.engine.CreditPositionByID(params.PositionID)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, "credit_getCreditPosition", err)
		return
	}
	writeResult(w, req.ID, position)
}

type loanStatusResult struct {
	PositionID uint64 `json:"positionId"`
	Status     string `json:"status"`
}

func (s *Server) handleGetLoanStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params positionIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	s.mu.Lock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	status, err := s.engine.LoanStatusByID(params.PositionID)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, "credit_getLoanStatus", err)
		return
	}
	writeResult(w, req.ID, loanStatusResult{PositionID: params.PositionID, Status: status.String()})
}

type collateralRatioResult struct {
	Address         string `json:"address"`
	CollateralRatio string `json:"collateralRatio"`
}

func (s *Server) handleGetCollateralRatio(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	s.mu.Lock()
	ratio, err := s.engine.CollateralRatio(addr)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, "credit_getCollateralRatio", err)
		return
	}
	writeResult(w, req.ID, collateralRatioResult{Address: addr.String(), CollateralRatio: ratio.String()})
}

type configResult struct {
	Config       credit.Config `json:"config"`
	FeeRecipient string        `json:"feeRecipient"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	s.mu.Lock()
	cfg := s.engine.Config()
	feeRecipient := s.engine.FeeRecipient()
	s.mu.Unlock()
	writeResult(w, req.ID, configResult{Config: cfg, FeeRecipient: feeRecipient.String()})
}
