package credit

import (
	"fmt"
	"math/big"

	"tenorbook/core/types"
	"tenorbook/crypto"
	nativecommon "tenorbook/native/common"
	"tenorbook/oracle"
)

const moduleName = "credit"

// Action names used for fine-grained pause switches and metrics labels.
const (
	ActionBuyCreditLimit           = "buy_credit_limit"
	ActionSellCreditLimit          = "sell_credit_limit"
	ActionBuyCreditMarket          = "buy_credit_market"
	ActionSellCreditMarket         = "sell_credit_market"
	ActionCompensate               = "compensate"
	ActionSelfLiquidate            = "self_liquidate"
	ActionLiquidate                = "liquidate"
	ActionLiquidateWithReplacement = "liquidate_with_replacement"
	ActionClaim                    = "claim"
	ActionRepay                    = "repay"
	ActionSetUserConfiguration     = "set_user_configuration"
	ActionDeposit                  = "deposit"
	ActionWithdraw                 = "withdraw"
)

// engineState is the narrow persistence surface the engine mutates. The
// concrete implementation lives in the state package; tests supply an
// in-memory mock.
type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	GetUser(addr crypto.Address) (*User, error)
	PutUser(user *User) error
	GetDebtPosition(id uint64) (*DebtPosition, error)
	PutDebtPosition(position *DebtPosition) error
	GetCreditPosition(id uint64) (*CreditPosition, error)
	PutCreditPosition(position *CreditPosition) error
	GetGlobals() (*Globals, error)
	PutGlobals(globals *Globals) error
	NextDebtPositionID() uint64
	NextCreditPositionID() uint64
}

// YieldVenue is the external venue idle repayment cash is parked in. Its
// liquidity index is monotonically non-decreasing; claims scale through it.
type YieldVenue interface {
	Supply(amount *big.Int) error
	Withdraw(amount *big.Int) error
	LiquidityIndex() *big.Int
}

// Engine orchestrates the state transitions of the fixed-rate credit market:
// limit and market orders, compensation, liquidation flows, claims and
// repayments.
type Engine struct {
	state        engineState
	cfg          Config
	feeRecipient crypto.Address
	keeper       crypto.Address
	priceFeed    oracle.PriceFeed
	rateFeed     oracle.RateFeed
	venue        YieldVenue
	pauses       nativecommon.PauseView
	timestamp    uint64
	batch        *BatchContext
	events       []*types.Event
}

// NewEngine constructs an engine with the given fee recipient and market
// configuration. Collaborators are wired through the Set* methods before the
// first action runs.
func NewEngine(feeRecipient crypto.Address, cfg Config) *Engine {
	cfg.Normalize()
	return &Engine{feeRecipient: feeRecipient, cfg: cfg}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses installs the operator pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetPriceFeed wires the collateral price oracle.
func (e *Engine) SetPriceFeed(feed oracle.PriceFeed) {
	if e == nil {
		return
	}
	e.priceFeed = feed
}

// SetRateFeed wires the variable borrow-rate oracle.
func (e *Engine) SetRateFeed(feed oracle.RateFeed) {
	if e == nil {
		return
	}
	e.rateFeed = feed
}

// SetVenue wires the yield venue holding idle repayment cash.
func (e *Engine) SetVenue(v YieldVenue) {
	if e == nil {
		return
	}
	e.venue = v
}

// SetKeeper assigns the account allowed to run liquidate-with-replacement.
func (e *Engine) SetKeeper(addr crypto.Address) {
	if e == nil {
		return
	}
	e.keeper = addr
}

// SetTimestamp records the externally supplied current time. Every action
// reads it once and treats it as constant for the call.
func (e *Engine) SetTimestamp(ts uint64) {
	if e == nil {
		return
	}
	e.timestamp = ts
}

// Timestamp returns the engine's current time value.
func (e *Engine) Timestamp() uint64 {
	if e == nil {
		return 0
	}
	return e.timestamp
}

// Config returns a copy of the active market configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.cfg
}

// FeeRecipient returns the account collecting protocol fees.
func (e *Engine) FeeRecipient() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.feeRecipient
}

// DrainEvents returns the events accumulated since the last drain and resets
// the buffer. The node forwards them to subscribers after each call.
func (e *Engine) DrainEvents() []*types.Event {
	if e == nil {
		return nil
	}
	drained := e.events
	e.events = nil
	return drained
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || event == nil {
		return
	}
	e.events = append(e.events, event)
}

func (e *Engine) guard(action string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nativecommon.Guard(e.pauses, moduleName, action)
}

// --- state accessors ---

func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &types.Account{}
	}
	account.Normalize()
	return account, nil
}

func (e *Engine) persistAccount(addr crypto.Address, account *types.Account) error {
	return e.state.PutAccount(addr, account)
}

func (e *Engine) ensureUser(addr crypto.Address) (*User, error) {
	user, err := e.state.GetUser(addr)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &User{Address: addr}
	}
	user.Normalize()
	return user, nil
}

func (e *Engine) getDebtPosition(id uint64) (*DebtPosition, error) {
	if !IsDebtPositionID(id) {
		return nil, fmt.Errorf("%w: id %d", errInvalidDebtPositionID, id)
	}
	position, err := e.state.GetDebtPosition(id)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, fmt.Errorf("%w: id %d", errInvalidDebtPositionID, id)
	}
	position.Normalize()
	return position, nil
}

func (e *Engine) getCreditPosition(id uint64) (*CreditPosition, error) {
	if !IsCreditPositionID(id) {
		return nil, fmt.Errorf("%w: id %d", errInvalidCreditPositionID, id)
	}
	position, err := e.state.GetCreditPosition(id)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, fmt.Errorf("%w: id %d", errInvalidCreditPositionID, id)
	}
	position.Normalize()
	return position, nil
}

func (e *Engine) ensureGlobals() (*Globals, error) {
	globals, err := e.state.GetGlobals()
	if err != nil {
		return nil, err
	}
	if globals == nil {
		globals = &Globals{}
	}
	globals.Normalize()
	return globals, nil
}

// --- oracle helpers ---

// rateSnapshot builds the variable-rate snapshot for the current call. The
// configured stale interval overrides whatever the feed reports so operators
// control staleness centrally.
func (e *Engine) rateSnapshot() oracle.RateSnapshot {
	var snap oracle.RateSnapshot
	if e.rateFeed != nil {
		snap = e.rateFeed.BorrowRate()
	}
	snap.StaleInterval = e.cfg.VariableRateStaleInterval
	return snap
}

// priceWad returns the collateral price normalized to 1e18 fixed point.
func (e *Engine) priceWad() (*big.Int, error) {
	if e.priceFeed == nil {
		return nil, errNilPriceFeed
	}
	price, decimals, err := e.priceFeed.Price()
	if err != nil {
		return nil, err
	}
	return amountToWad(price, decimals), nil
}

// wadToAmount converts an 18-decimal value back to token units with an
// explicit rounding direction.
func wadToAmount(wad *big.Int, decimals uint8, roundUp bool) *big.Int {
	if decimals >= wadDecimals {
		return new(big.Int).Set(wad)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(wadDecimals-decimals)), nil)
	if roundUp {
		return mulDivUp(wad, big.NewInt(1), scale)
	}
	return mulDivDown(wad, big.NewInt(1), scale)
}

// debtAmountToCollateral converts a borrow-token amount to collateral tokens
// at the oracle price. Amounts the protocol or a liquidator will receive are
// rounded up by the caller's choice of direction.
func (e *Engine) debtAmountToCollateral(amount *big.Int, roundUp bool) (*big.Int, error) {
	priceWad, err := e.priceWad()
	if err != nil {
		return nil, err
	}
	cashWad := amountToWad(amount, e.cfg.CashDecimals)
	var collateralWad *big.Int
	if roundUp {
		collateralWad = mulDivUp(cashWad, Percent, priceWad)
	} else {
		collateralWad = mulDivDown(cashWad, Percent, priceWad)
	}
	return wadToAmount(collateralWad, e.cfg.CollateralDecimals, roundUp), nil
}

// --- ledger operations ---

// DepositCash mints borrow-token balance for an account after the external
// transfer-in settles, enforcing the market-wide deposit cap.
func (e *Engine) DepositCash(to crypto.Address, amount *big.Int) error {
	if err := e.guard(ActionDeposit); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	globals, err := e.ensureGlobals()
	if err != nil {
		return err
	}
	globals.TotalCashDeposits = new(big.Int).Add(globals.TotalCashDeposits, amount)
	if err := e.validateCashDepositCap(globals); err != nil {
		return err
	}
	account, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	account.BalanceCash = new(big.Int).Add(account.BalanceCash, amount)
	if err := e.persistAccount(to, account); err != nil {
		return err
	}
	if err := e.state.PutGlobals(globals); err != nil {
		return err
	}
	e.emit(NewDepositEvent(to, "cash", amount))
	return nil
}

// WithdrawCash burns borrow-token balance ahead of the external transfer-out.
func (e *Engine) WithdrawCash(from crypto.Address, amount *big.Int) error {
	if err := e.guard(ActionWithdraw); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	account, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if account.BalanceCash.Cmp(amount) < 0 {
		return errInsufficientCash
	}
	account.BalanceCash = new(big.Int).Sub(account.BalanceCash, amount)
	if err := e.persistAccount(from, account); err != nil {
		return err
	}
	globals, err := e.ensureGlobals()
	if err != nil {
		return err
	}
	globals.TotalCashDeposits = new(big.Int).Sub(globals.TotalCashDeposits, amount)
	if globals.TotalCashDeposits.Sign() < 0 {
		globals.TotalCashDeposits = big.NewInt(0)
	}
	if err := e.state.PutGlobals(globals); err != nil {
		return err
	}
	e.emit(NewWithdrawEvent(from, "cash", amount))
	return nil
}

// DepositCollateral pledges collateral to the module on behalf of an account.
func (e *Engine) DepositCollateral(to crypto.Address, amount *big.Int) error {
	if err := e.guard(ActionDeposit); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	user, err := e.ensureUser(to)
	if err != nil {
		return err
	}
	user.Collateral = new(big.Int).Add(user.Collateral, amount)
	if err := e.state.PutUser(user); err != nil {
		return err
	}
	e.emit(NewDepositEvent(to, "collateral", amount))
	return nil
}

// WithdrawCollateral releases pledged collateral while keeping the remaining
// position above the opening collateral ratio.
func (e *Engine) WithdrawCollateral(from crypto.Address, amount *big.Int) error {
	if err := e.guard(ActionWithdraw); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	user, err := e.ensureUser(from)
	if err != nil {
		return err
	}
	if user.Collateral.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	user.Collateral = new(big.Int).Sub(user.Collateral, amount)
	if err := e.validateUserIsNotBelowOpeningLimitBorrowCR(user); err != nil {
		return err
	}
	if err := e.state.PutUser(user); err != nil {
		return err
	}
	e.emit(NewWithdrawEvent(from, "collateral", amount))
	return nil
}

// validateCashBalance checks an account can fund an outgoing transfer without
// moving anything.
func (e *Engine) validateCashBalance(from crypto.Address, amount *big.Int) error {
	account, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if account.BalanceCash.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", errInsufficientCash, from, account.BalanceCash, amount)
	}
	return nil
}

// transferCash moves borrow-token balance between two ledger accounts.
func (e *Engine) transferCash(from, to crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	source, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if source.BalanceCash.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", errInsufficientCash, from, source.BalanceCash, amount)
	}
	source.BalanceCash = new(big.Int).Sub(source.BalanceCash, amount)
	if err := e.persistAccount(from, source); err != nil {
		return err
	}
	destination, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	destination.BalanceCash = new(big.Int).Add(destination.BalanceCash, amount)
	return e.persistAccount(to, destination)
}

// creditCash adds borrow-token balance to an account's free balance.
func (e *Engine) creditCash(to crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	account, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	account.BalanceCash = new(big.Int).Add(account.BalanceCash, amount)
	return e.persistAccount(to, account)
}

// creditCollateralBalance pays out collateral tokens into an account's free
// balance. Liquidation and self-liquidation proceeds land here.
func (e *Engine) creditCollateralBalance(to crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	account, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	account.BalanceCollateral = new(big.Int).Add(account.BalanceCollateral, amount)
	return e.persistAccount(to, account)
}

// validateCashDepositCap enforces the market deposit cap unless a batch has
// deferred it to batch end.
func (e *Engine) validateCashDepositCap(globals *Globals) error {
	if e.batch != nil {
		return nil
	}
	if e.cfg.CashDepositCap.Sign() == 0 {
		return nil
	}
	if globals.TotalCashDeposits.Cmp(e.cfg.CashDepositCap) > 0 {
		return fmt.Errorf("%w: %s over cap %s", errCashDepositCapExceeded, globals.TotalCashDeposits, e.cfg.CashDepositCap)
	}
	return nil
}
