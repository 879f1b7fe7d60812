package credit

import (
	"fmt"
	"math/big"

	"tenorbook/crypto"
)

// Config groups the admin-set market parameters. Percentages and ratios are
// 1e18 scaled, amounts are borrow-token units, tenors are seconds.
type Config struct {
	// CROpening is the minimum collateral ratio required to open new debt.
	CROpening *big.Int `json:"crOpening"`
	// CRLiquidation is the ratio below which positions become liquidatable.
	// Always strictly below CROpening.
	CRLiquidation *big.Int `json:"crLiquidation"`
	// MinimumCreditBorrowToken is the dust floor for credit fragments.
	MinimumCreditBorrowToken *big.Int `json:"minimumCreditBorrowToken"`
	// CashDepositCap bounds total borrow-token deposits in the ledger. Zero
	// disables the cap.
	CashDepositCap *big.Int `json:"cashDepositCap"`
	MinTenor       uint64   `json:"minTenor"`
	MaxTenor       uint64   `json:"maxTenor"`
	// SwapFeeAPR prices the linear-in-tenor protocol fee on market orders.
	SwapFeeAPR *big.Int `json:"swapFeeAPR"`
	// FragmentationFee is the flat cash fee charged when a market order only
	// partially consumes an existing credit position.
	FragmentationFee *big.Int `json:"fragmentationFee"`
	// LiquidationRewardPercent caps the liquidator reward relative to the
	// repaid future value.
	LiquidationRewardPercent *big.Int `json:"liquidationRewardPercent"`
	// CollateralProtocolPercent is the protocol's share of the collateral
	// remainder on risk-based (underwater) liquidations.
	CollateralProtocolPercent *big.Int `json:"collateralProtocolPercent"`
	// OverdueCollateralProtocolPercent is the protocol's share on
	// overdue-only liquidations.
	OverdueCollateralProtocolPercent *big.Int `json:"overdueCollateralProtocolPercent"`
	// CashDecimals is the borrow token's decimal scale (at most 18; larger
	// tokens are rejected at the ledger boundary).
	CashDecimals uint8 `json:"cashDecimals"`
	// CollateralDecimals is the collateral token's decimal scale.
	CollateralDecimals uint8 `json:"collateralDecimals"`
	// VariableRateStaleInterval bounds the acceptable age of the variable
	// borrow-rate snapshot. Zero disables variable-rate curve points.
	VariableRateStaleInterval uint64 `json:"variableRateStaleInterval"`
}

// Normalize replaces nil money fields with zeros so partially populated
// configs can still be validated.
func (c *Config) Normalize() {
	for _, field := range []**big.Int{
		&c.CROpening, &c.CRLiquidation, &c.MinimumCreditBorrowToken,
		&c.CashDepositCap, &c.SwapFeeAPR, &c.FragmentationFee,
		&c.LiquidationRewardPercent, &c.CollateralProtocolPercent,
		&c.OverdueCollateralProtocolPercent,
	} {
		if *field == nil {
			*field = big.NewInt(0)
		}
	}
}

// Validate enforces the full consistency rules. It runs on boot and again
// after every single-field update.
func (c *Config) Validate() error {
	c.Normalize()
	if c.CROpening.Sign() <= 0 || c.CRLiquidation.Sign() <= 0 {
		return fmt.Errorf("%w: collateral ratios must be positive", errInvalidConfig)
	}
	if c.CROpening.Cmp(c.CRLiquidation) <= 0 {
		return fmt.Errorf("%w: crOpening %s must exceed crLiquidation %s", errInvalidConfig, c.CROpening, c.CRLiquidation)
	}
	if c.MinTenor == 0 || c.MinTenor >= c.MaxTenor {
		return fmt.Errorf("%w: tenor bounds [%d, %d]", errInvalidConfig, c.MinTenor, c.MaxTenor)
	}
	if c.MinimumCreditBorrowToken.Sign() <= 0 {
		return fmt.Errorf("%w: minimum credit must be positive", errInvalidConfig)
	}
	if c.SwapFeeAPR.Sign() < 0 || c.FragmentationFee.Sign() < 0 {
		return fmt.Errorf("%w: fees cannot be negative", errInvalidConfig)
	}
	// The swap fee over the longest tenor must stay below 100% so the
	// fee-inclusive conversions never divide by a non-positive value.
	maxFee := mulDivUp(c.SwapFeeAPR, new(big.Int).SetUint64(c.MaxTenor), year)
	if maxFee.Cmp(Percent) >= 0 {
		return fmt.Errorf("%w: swap fee %s over max tenor reaches 100%%", errInvalidConfig, maxFee)
	}
	for _, pct := range []*big.Int{c.LiquidationRewardPercent, c.CollateralProtocolPercent, c.OverdueCollateralProtocolPercent} {
		if pct.Sign() < 0 || pct.Cmp(Percent) > 0 {
			return fmt.Errorf("%w: percent value %s outside [0, 1e18]", errInvalidConfig, pct)
		}
	}
	if c.CashDecimals > wadDecimals || c.CollateralDecimals > wadDecimals {
		return fmt.Errorf("%w: token decimals above 18 are not supported", errInvalidConfig)
	}
	return nil
}

// ConfigField enumerates the individually updatable configuration fields.
// String keys exist only at the RPC boundary.
type ConfigField int

const (
	FieldCROpening ConfigField = iota
	FieldCRLiquidation
	FieldMinimumCreditBorrowToken
	FieldCashDepositCap
	FieldMinTenor
	FieldMaxTenor
	FieldSwapFeeAPR
	FieldFragmentationFee
	FieldLiquidationRewardPercent
	FieldCollateralProtocolPercent
	FieldOverdueCollateralProtocolPercent
	FieldVariableRateStaleInterval
	FieldFeeRecipient
)

// ConfigUpdate is a tagged single-field mutation. Exactly one value member is
// consulted depending on the field.
type ConfigUpdate struct {
	Field     ConfigField
	BigValue  *big.Int
	UintValue uint64
	AddrValue crypto.Address
}

// UpdateConfig applies one field mutation and re-validates the whole config,
// rolling back on failure.
func (e *Engine) UpdateConfig(update ConfigUpdate) error {
	if e == nil {
		return errNilState
	}
	previous := e.cfg
	previousFeeRecipient := e.feeRecipient

	switch update.Field {
	case FieldCROpening:
		e.cfg.CROpening = cloneBig(update.BigValue)
	case FieldCRLiquidation:
		e.cfg.CRLiquidation = cloneBig(update.BigValue)
	case FieldMinimumCreditBorrowToken:
		e.cfg.MinimumCreditBorrowToken = cloneBig(update.BigValue)
	case FieldCashDepositCap:
		e.cfg.CashDepositCap = cloneBig(update.BigValue)
	case FieldMinTenor:
		e.cfg.MinTenor = update.UintValue
	case FieldMaxTenor:
		e.cfg.MaxTenor = update.UintValue
	case FieldSwapFeeAPR:
		e.cfg.SwapFeeAPR = cloneBig(update.BigValue)
	case FieldFragmentationFee:
		e.cfg.FragmentationFee = cloneBig(update.BigValue)
	case FieldLiquidationRewardPercent:
		e.cfg.LiquidationRewardPercent = cloneBig(update.BigValue)
	case FieldCollateralProtocolPercent:
		e.cfg.CollateralProtocolPercent = cloneBig(update.BigValue)
	case FieldOverdueCollateralProtocolPercent:
		e.cfg.OverdueCollateralProtocolPercent = cloneBig(update.BigValue)
	case FieldVariableRateStaleInterval:
		e.cfg.VariableRateStaleInterval = update.UintValue
	case FieldFeeRecipient:
		if update.AddrValue.IsZero() {
			return errFeeRecipientNotSet
		}
		e.feeRecipient = update.AddrValue
	default:
		return fmt.Errorf("%w: unknown field %d", errInvalidConfig, update.Field)
	}

	if err := e.cfg.Validate(); err != nil {
		e.cfg = previous
		e.feeRecipient = previousFeeRecipient
		return err
	}
	e.emit(NewConfigUpdatedEvent(update.Field))
	return nil
}
