package rpc

import (
	"net/http"

	"tenorbook/native/credit"
)

// configFieldNames maps the RPC-level field keys to engine fields.
var configFieldNames = map[string]credit.ConfigField{
	"crOpening":                        credit.FieldCROpening,
	"crLiquidation":                    credit.FieldCRLiquidation,
	"minimumCreditBorrowToken":         credit.FieldMinimumCreditBorrowToken,
	"cashDepositCap":                   credit.FieldCashDepositCap,
	"minTenor":                         credit.FieldMinTenor,
	"maxTenor":                         credit.FieldMaxTenor,
	"swapFeeApr":                       credit.FieldSwapFeeAPR,
	"fragmentationFee":                 credit.FieldFragmentationFee,
	"liquidationRewardPercent":         credit.FieldLiquidationRewardPercent,
	"collateralProtocolPercent":        credit.FieldCollateralProtocolPercent,
	"overdueCollateralProtocolPercent": credit.FieldOverdueCollateralProtocolPercent,
	"variableRateStaleInterval":        credit.FieldVariableRateStaleInterval,
	"feeRecipient":                     credit.FieldFeeRecipient,
}

type updateConfigParams struct {
	Field     string `json:"field"`
	BigValue  string `json:"bigValue,omitempty"`
	UintValue uint64 `json:"uintValue,omitempty"`
	AddrValue string `json:"addrValue,omitempty"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params updateConfigParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	field, ok := configFieldNames[params.Field]
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown config field", params.Field)
		return
	}
	update := credit.ConfigUpdate{Field: field, UintValue: params.UintValue}
	if params.BigValue != "" {
		value, rpcErr := parseSignedAmount(params.BigValue)
		if rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
		update.BigValue = value
	}
	if params.AddrValue != "" {
		addr, rpcErr := parseAddress(params.AddrValue)
		if rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
		update.AddrValue = addr
	}
	if err := s.withEngine(func() error { return s.engine.UpdateConfig(update) }); err != nil {
		writeEngineError(w, req.ID, "admin_updateConfig", err)
		return
	}
	writeResult(w, req.ID, okResult)
}

type pauseParams struct {
	Module string `json:"module,omitempty"`
	Action string `json:"action,omitempty"`
	Paused bool   `json:"paused"`
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pauseParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	switch {
	case params.Action != "":
		s.pauses.SetAction(params.Action, params.Paused)
	case params.Module != "":
		s.pauses.SetModule(params.Module, params.Paused)
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "module or action required", nil)
		return
	}
	s.logger.Info("pause switch updated", "module", params.Module, "action", params.Action, "paused", params.Paused)
	writeResult(w, req.ID, okResult)
}
