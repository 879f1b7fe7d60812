package rpc

import (
	"net/http"

	"tenorbook/oracle"
)

type setOraclePriceParams struct {
	Price    string `json:"price"`
	Decimals uint8  `json:"decimals"`
}

func (s *Server) handleSetOraclePrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setOraclePriceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	price, rpcErr := parseAmount(params.Price)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if price.Sign() == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "price must be positive", nil)
		return
	}
	s.priceFeed.Set(price, params.Decimals)
	s.logger.Info("oracle price updated", "decimals", params.Decimals)
	writeResult(w, req.ID, okResult)
}

type setOracleRateParams struct {
	VariableBorrowRate string `json:"variableBorrowRate"`
}

func (s *Server) handleSetOracleRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setOracleRateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	value, rpcErr := parseSignedAmount(params.VariableBorrowRate)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	s.rateFeed.Set(oracle.RateSnapshot{
		VariablePoolBorrowRate: value,
		UpdatedAt:              uint64(s.now().Unix()),
	})
	s.logger.Info("oracle rate updated")
	writeResult(w, req.ID, okResult)
}
