package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tenorbook/crypto"
	"tenorbook/native/credit"
)

// Genesis is the YAML document the market boots from. Big amounts are decimal
// strings so operators never fight YAML number precision.
type Genesis struct {
	FeeRecipient string         `yaml:"feeRecipient"`
	Keeper       string         `yaml:"keeper"`
	Market       GenesisMarket  `yaml:"market"`
	Oracle       GenesisOracle  `yaml:"oracle"`
	Accounts     []GenesisFunds `yaml:"accounts"`
}

// GenesisMarket mirrors the engine configuration in operator-friendly form.
type GenesisMarket struct {
	CROpening                        string `yaml:"crOpening"`
	CRLiquidation                    string `yaml:"crLiquidation"`
	MinimumCreditBorrowToken         string `yaml:"minimumCreditBorrowToken"`
	CashDepositCap                   string `yaml:"cashDepositCap"`
	MinTenor                         uint64 `yaml:"minTenor"`
	MaxTenor                         uint64 `yaml:"maxTenor"`
	SwapFeeAPR                       string `yaml:"swapFeeAPR"`
	FragmentationFee                 string `yaml:"fragmentationFee"`
	LiquidationRewardPercent         string `yaml:"liquidationRewardPercent"`
	CollateralProtocolPercent        string `yaml:"collateralProtocolPercent"`
	OverdueCollateralProtocolPercent string `yaml:"overdueCollateralProtocolPercent"`
	CashDecimals                     uint8  `yaml:"cashDecimals"`
	CollateralDecimals               uint8  `yaml:"collateralDecimals"`
	VariableRateStaleInterval        uint64 `yaml:"variableRateStaleInterval"`
}

// GenesisOracle seeds the static feeds on a fresh node.
type GenesisOracle struct {
	CollateralPrice    string `yaml:"collateralPrice"`
	PriceDecimals      uint8  `yaml:"priceDecimals"`
	VariableBorrowRate string `yaml:"variableBorrowRate"`
}

// GenesisFunds prefunds an account's free balances.
type GenesisFunds struct {
	Address    string `yaml:"address"`
	Cash       string `yaml:"cash"`
	Collateral string `yaml:"collateral"`
}

// LoadGenesis parses and validates a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	genesis := &Genesis{}
	if err := yaml.Unmarshal(raw, genesis); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	if strings.TrimSpace(genesis.FeeRecipient) == "" {
		return nil, fmt.Errorf("genesis %s: feeRecipient is required", path)
	}
	return genesis, nil
}

// MarketConfig converts the genesis market section into the engine's
// configuration, validating it in the process.
func (g *Genesis) MarketConfig() (credit.Config, error) {
	cfg := credit.Config{
		MinTenor:                  g.Market.MinTenor,
		MaxTenor:                  g.Market.MaxTenor,
		CashDecimals:              g.Market.CashDecimals,
		CollateralDecimals:        g.Market.CollateralDecimals,
		VariableRateStaleInterval: g.Market.VariableRateStaleInterval,
	}
	fields := []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"crOpening", g.Market.CROpening, &cfg.CROpening},
		{"crLiquidation", g.Market.CRLiquidation, &cfg.CRLiquidation},
		{"minimumCreditBorrowToken", g.Market.MinimumCreditBorrowToken, &cfg.MinimumCreditBorrowToken},
		{"cashDepositCap", g.Market.CashDepositCap, &cfg.CashDepositCap},
		{"swapFeeAPR", g.Market.SwapFeeAPR, &cfg.SwapFeeAPR},
		{"fragmentationFee", g.Market.FragmentationFee, &cfg.FragmentationFee},
		{"liquidationRewardPercent", g.Market.LiquidationRewardPercent, &cfg.LiquidationRewardPercent},
		{"collateralProtocolPercent", g.Market.CollateralProtocolPercent, &cfg.CollateralProtocolPercent},
		{"overdueCollateralProtocolPercent", g.Market.OverdueCollateralProtocolPercent, &cfg.OverdueCollateralProtocolPercent},
	}
	for _, field := range fields {
		value, err := ParseAmount(field.raw)
		if err != nil {
			return credit.Config{}, fmt.Errorf("genesis market.%s: %w", field.name, err)
		}
		*field.dst = value
	}
	if err := cfg.Validate(); err != nil {
		return credit.Config{}, err
	}
	return cfg, nil
}

// FeeRecipientAddress decodes the fee recipient.
func (g *Genesis) FeeRecipientAddress() (crypto.Address, error) {
	return crypto.DecodeAddress(g.FeeRecipient)
}

// KeeperAddress decodes the keeper, which may be empty.
func (g *Genesis) KeeperAddress() (crypto.Address, error) {
	if strings.TrimSpace(g.Keeper) == "" {
		return crypto.Address{}, nil
	}
	return crypto.DecodeAddress(g.Keeper)
}

// ParseAmount parses a non-negative decimal string. Empty strings parse to
// zero so optional genesis fields can be omitted.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", raw)
	}
	return value, nil
}
