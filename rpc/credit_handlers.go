package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"

	"tenorbook/config"
	"tenorbook/crypto"
	"tenorbook/native/credit"
	"tenorbook/observability/metrics"
)

type txResult struct {
	Status string `json:"status"`
}

var okResult = txResult{Status: "ok"}

// withEngine serializes an engine mutation: lock, stamp the wall clock, run,
// flush counters on success.
func (s *Server) withEngine(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	if err := fn(); err != nil {
		return err
	}
	return s.manager.Commit()
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter", Data: err.Error()}
	}
	return nil
}

func parseAddress(raw string) (crypto.Address, *RPCError) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, &RPCError{Code: codeInvalidParams, Message: "invalid address", Data: err.Error()}
	}
	return addr, nil
}

func parseAmount(raw string) (*big.Int, *RPCError) {
	amount, err := config.ParseAmount(raw)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid amount", Data: err.Error()}
	}
	return amount, nil
}

// parseSignedAmount accepts negative values; curve APRs may price below the
// variable rate.
func parseSignedAmount(raw string) (*big.Int, *RPCError) {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid amount", Data: raw}
	}
	return value, nil
}

func writeEngineError(w http.ResponseWriter, id interface{}, method string, err error) {
	metrics.Credit().ObserveActionError(method)
	writeError(w, http.StatusUnprocessableEntity, id, codeServerError, err.Error(), nil)
}

// --- ledger ---

type balanceParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *Server) handleBalanceAction(w http.ResponseWriter, req *RPCRequest, method string, action func(crypto.Address, *big.Int) error) {
	var params balanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.withEngine(func() error { return action(addr, amount) }); err != nil {
		writeEngineError(w, req.ID, method, err)
		return
	}
	s.publishDepositGauge()
	writeResult(w, req.ID, okResult)
}

func (s *Server) publishDepositGauge() {
	globals, err := s.manager.GetGlobals()
	if err != nil || globals == nil || globals.TotalCashDeposits == nil {
		return
	}
	total, _ := new(big.Float).SetInt(globals.TotalCashDeposits).Float64()
	metrics.Credit().SetTotalDeposits(total)
}

func (s *Server) handleDepositCash(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleBalanceAction(w, req, "credit_depositCash", s.engine.DepositCash)
}

func (s *Server) handleWithdrawCash(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleBalanceAction(w, req, "credit_withdrawCash", s.engine.WithdrawCash)
}

func (s *Server) handleDepositCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleBalanceAction(w, req, "credit_depositCollateral", s.engine.DepositCollateral)
}

func (s *Server) handleWithdrawCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleBalanceAction(w, req, "credit_withdrawCollateral", s.engine.WithdrawCollateral)
}

// --- limit orders ---

type curveParams struct {
	Tenors                []uint64 `json:"tenors"`
	APRs                  []string `json:"aprs"`
	MarketRateMultipliers []string `json:"marketRateMultipliers"`
}

func (c curveParams) toCurve() (credit.YieldCurve, *RPCError) {
	curve := credit.YieldCurve{Tenors: c.Tenors}
	for _, raw := range c.APRs {
		apr, rpcErr := parseSignedAmount(raw)
		if rpcErr != nil {
			return credit.YieldCurve{}, rpcErr
		}
		curve.APRs = append(curve.APRs, apr)
	}
	for _, raw := range c.MarketRateMultipliers {
		multiplier, rpcErr := parseAmount(raw)
		if rpcErr != nil {
			return credit.YieldCurve{}, rpcErr
		}
		curve.MarketRateMultipliers = append(curve.MarketRateMultipliers, multiplier)
	}
	return curve, nil
}

type buyCreditLimitParams struct {
	Lender     string      `json:"lender"`
	MaxDueDate uint64      `json:"maxDueDate"`
	Curve      curveParams `json:"curve"`
}

func (s *Server) handleBuyCreditLimit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params buyCreditLimitParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	lender, rpcErr := parseAddress(params.Lender)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	curve, rpcErr := params.Curve.toCurve()
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	err := s.withEngine(func() error {
		return s.engine.BuyCreditLimit(credit.BuyCreditLimitParams{
			Lender:     lender,
			MaxDueDate: params.MaxDueDate,
			Curve:      curve,
		})
	})
	if err != nil {
		writeEngineError(w, req.ID, "credit_buyCreditLimit", err)
		return
	}
	writeResult(w, req.ID, okResult)
}

type sellCreditLimitParams struct {
	Borrower string      `json:"borrower"`
	Curve    curveParams `json:"curve"`
}

func (s *Server) handleSellCreditLimit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params sellCreditLimitParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	borrower, rpcErr := parseAddress(params.Borrower)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	curve, rpcErr := params.Curve.toCurve()
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	err := s.withEngine(func() error {
		return s.engine.SellCreditLimit(credit.SellCreditLimitParams{Borrower: borrower, Curve: curve})
	})
	if err != nil {
		writeEngineError(w, req.ID, "credit_sellCreditLimit", err)
		return
	}
	writeResult(w, req.ID, okResult)
}

// --- market orders ---

type sellCreditMarketParams struct {
	Seller           string `json:"seller"`
	Lender           string `json:"lender"`
	CreditPositionID uint64 `json:"creditPositionId"`
	Amount           string `json:"amount"`
	Tenor            uint64 `json:"tenor"`
	Deadline         uint64 `json:"deadline"`
	MaxAPR           string `json:"maxApr,omitempty"`
	ExactAmountIn    bool   `json:"exactAmountIn"`
}

func (s *Server) handleSellCreditMarket(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params sellCreditMarketParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	seller, rpcErr := parseAddress(params.Seller)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	lender, rpcErr := parseAddress(params.Lender)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var maxAPR *big.Int
	if params.MaxAPR != "" {
		if maxAPR, rpcErr = parseSignedAmount(params.MaxAPR); rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
	}
	err := s.withEngine(func() error {
		return s.engine.SellCreditMarket(credit.SellCreditMarketParams{
			Seller:           seller,
			Lender:           lender,
			CreditPositionID: positionIDOrReserved(params.CreditPositionID),
			Amount:           amount,
			Tenor:            params.Tenor,
			Deadline:         params.Deadline,
			MaxAPR:           maxAPR,
			ExactAmountIn:    params.ExactAmountIn,
		})
	})
	if err != nil {
		writeEngineError(w, req.ID, "credit_sellCreditMarket", err)
		return
	}
	writeResult(w, req.ID, okResult)
}

type buyCreditMarketParams struct {
	Lender           string `json:"lender"`
	Borrower         string `json:"borrower,omitempty"`
	CreditPositionID uint64 `json:"creditPositionId"`
	Amount           string `json:"amount"`
	Tenor            uint64 `json:"tenor"`
	Deadline         uint64 `json:"deadline"`
	MinAPR           string `json:"minApr,omitempty"`
	ExactAmountIn    bool   `json:"exactAmountIn"`
}

func (s *Server) handleBuyCreditMarket(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params buyCreditMarketParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	lender, rpcErr := parseAddress(params.Lender)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var borrower crypto.Address
	if params.Borrower != "" {
		if borrower, rpcErr = parseAddress(params.Borrower); rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var minAPR *big.Int
	if params.MinAPR != "" {
		if minAPR, rpcErr = parseSignedAmount(params.MinAPR); rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
	}
	err := s.withEngine(func() error {
		return s.engine.BuyCreditMarket(credit.BuyCreditMarketParams{
			Lender:           lender,
			Borrower:         borrower,
			CreditPositionID: positionIDOrReserved(params.CreditPositionID),
			Amount:           amount,
			Tenor:            params.Tenor,
			Deadline:         params.Deadline,
			MinAPR:           minAPR,
			ExactAmountIn:    params.ExactAmountIn,
		})
	})
	if err != nil {
		writeEngineError(w, req.ID, "credit_buyCreditMarket", err)
		return
	}
	writeResult(w, req.ID, okResult)
}

// positionIDOrReserved maps the JSON-friendly zero to the reserved sentinel.
func positionIDOrReserved(id uint64) uint64 {
	if id == 0 {
		return credit.ReservedID
	}
	return id
}

// --- compensation, repayment, claims ---

type compensateParams struct {
	Caller                          string `json:"caller"`
	CreditPositionWithDebtToRepayID uint64 `json:"creditPositionWithDebtToRepayId"`
	CreditPositionToCompensateID    uint64 `json:"creditPositionToCompensateId"`
	Amount                          string `json:"amount"`
}

func (s *Server) handleCompensate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params compensateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	err := s.withEngine(func() error {
		return s.engine.Compensate(credit.CompensateParams{
			Caller:                          caller,
			CreditPositionWithDebtToRepayID: params.CreditPositionWithDebtToRepayID,
			CreditPositionToCompensateID:    positionIDOrReserved(params.CreditPositionToCompensateID),
			Amount:                          amount,
		})
	})
	if err != nil {
		writeEngineError(w, req.ID, "credit_compensate", err)
		return
	}
	writeResult(w, req.ID, okResult)
}

type repayParams struct {
	Payer          string `json:"payer"`
	DebtPositionID uint64 `json:"debtPositionId"`
}

func (s *Server) handleRepay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params repayParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	payer, rpcErr := parseAddress(params.Payer)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	err := s.withEngine(func() error {
		return s.engine.Repay(credit.RepayParams{Payer: payer, DebtPositionID: params.DebtPositionID})
	})
	if err != nil {
		writeEngineError(w, req.ID, "credit_repay", err)
		return
	}
	writeResult(w, req.ID, okResult)
}

// Claims are permissionless, so the payload only names the position.
type claimParams struct {
	CreditPositionID uint64 `json:"creditPositionId"`
}

func (s *Server) handleClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	err := s.withEngine(func() error {
		return s.engine.Claim(credit.ClaimParams{CreditPositionID: params.CreditPositionID})
	})
	if err != nil {
		writeEngineError(w, req.ID, "credit_claim", err)
		return
	}
	writeResult(w, req.ID, okResult)
}

// --- liquidations ---

type selfLiquidateParams struct {
	Lender           string `json:"lender"`
	CreditPositionID uint64 `json:"creditPositionId"`
}

func (s *Server) handleSelfLiquidate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params selfLiquidateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	lender, rpcErr := parseAddress(params.Lender)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	err := s.withEngine(func() error {
		return s.engine.SelfLiquidate(credit.SelfLiquidateParams{Lender: lender, CreditPositionID: params.CreditPositionID})
	})
	if err != nil {
		writeEngineError(w, req.ID, "credit_selfLiquidate", err)
		return
	}
	metrics.Credit().ObserveLiquidation("self")
	writeResult(w, req.ID, okResult)
}

type liquidateParams struct {
	Liquidator              string `json:"liquidator"`
	DebtPositionID          uint64 `json:"debtPositionId"`
	MinimumCollateralProfit string `json:"minimumCollateralProfit,omitempty"`
}

func (s *Server) handleLiquidate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params liquidateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	liquidator, rpcErr := parseAddress(params.Liquidator)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var minimumProfit *big.Int
	if params.MinimumCollateralProfit != "" {
		if minimumProfit, rpcErr = parseAmount(params.MinimumCollateralProfit); rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
	}
	err := s.withEngine(func() error {
		return s.engine.Liquidate(credit.LiquidateParams{
			Liquidator:              liquidator,
			DebtPositionID:          params.DebtPositionID,
			MinimumCollateralProfit: minimumProfit,
		})
	})
	if err != nil {
		writeEngineError(w, req.ID, "credit_liquidate", err)
		return
	}
	metrics.Credit().ObserveLiquidation("third_party")
	writeResult(w, req.ID, okResult)
}

type liquidateWithReplacementParams struct {
	Keeper                  string `json:"keeper"`
	DebtPositionID          uint64 `json:"debtPositionId"`
	Borrower                string `json:"borrower"`
	MinAPR                  string `json:"minApr,omitempty"`
	Deadline                uint64 `json:"deadline"`
	MinimumCollateralProfit string `json:"minimumCollateralProfit,omitempty"`
}

func (s *Server) handleLiquidateWithReplacement(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params liquidateWithReplacementParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	keeper, rpcErr := parseAddress(params.Keeper)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	borrower, rpcErr := parseAddress(params.Borrower)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var minAPR, minimumProfit *big.Int
	if params.MinAPR != "" {
		if minAPR, rpcErr = parseSignedAmount(params.MinAPR); rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
	}
	if params.MinimumCollateralProfit != "" {
		if minimumProfit, rpcErr = parseAmount(params.MinimumCollateralProfit); rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
	}
	err := s.withEngine(func() error {
		return s.engine.LiquidateWithReplacement(credit.LiquidateWithReplacementParams{
			Keeper:                  keeper,
			DebtPositionID:          params.DebtPositionID,
			Borrower:                borrower,
			MinAPR:                  minAPR,
			Deadline:                params.Deadline,
			MinimumCollateralProfit: minimumProfit,
		})
	})
	if err != nil {
		writeEngineError(w, req.ID, "credit_liquidateWithReplacement", err)
		return
	}
	metrics.Credit().ObserveLiquidation("replacement")
	writeResult(w, req.ID, okResult)
}

// --- user configuration ---

type userConfigurationParams struct {
	Caller                            string   `json:"caller"`
	OpeningLimitBorrowCR              string   `json:"openingLimitBorrowCr,omitempty"`
	AllCreditPositionsForSaleDisabled bool     `json:"allCreditPositionsForSaleDisabled"`
	CreditPositionIDsForSale          []uint64 `json:"creditPositionIdsForSale,omitempty"`
	ForSale                           bool     `json:"forSale"`
}

func (s *Server) handleSetUserConfiguration(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params userConfigurationParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var openingCR *big.Int
	if params.OpeningLimitBorrowCR != "" {
		if openingCR, rpcErr = parseAmount(params.OpeningLimitBorrowCR); rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
	}
	err := s.withEngine(func() error {
		return s.engine.SetUserConfiguration(caller, credit.UserConfigurationParams{
			OpeningLimitBorrowCR:              openingCR,
			AllCreditPositionsForSaleDisabled: params.AllCreditPositionsForSaleDisabled,
			CreditPositionIDsForSale:          params.CreditPositionIDsForSale,
			ForSale:                           params.ForSale,
		})
	})
	if err != nil {
		writeEngineError(w, req.ID, "credit_setUserConfiguration", err)
		return
	}
	writeResult(w, req.ID, okResult)
}
