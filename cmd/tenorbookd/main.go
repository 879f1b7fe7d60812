package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tenorbook/config"
	"tenorbook/crypto"
	"tenorbook/native/credit"
	"tenorbook/native/venue"
	"tenorbook/observability/logging"
	"tenorbook/oracle"
	"tenorbook/rpc"
	"tenorbook/state"
	"tenorbook/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("TENORBOOK_ENV"))
	logger := logging.Setup("tenorbookd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Environment
	}

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = cfg.GenesisFile
	}
	if strings.TrimSpace(genesisPath) == "" {
		logger.Error("no genesis file configured")
		os.Exit(1)
	}
	genesis, err := config.LoadGenesis(genesisPath)
	if err != nil {
		logger.Error("failed to load genesis", slog.Any("error", err))
		os.Exit(1)
	}
	marketCfg, err := genesis.MarketConfig()
	if err != nil {
		logger.Error("invalid genesis market config", slog.Any("error", err))
		os.Exit(1)
	}
	feeRecipient, err := genesis.FeeRecipientAddress()
	if err != nil {
		logger.Error("invalid fee recipient", slog.Any("error", err))
		os.Exit(1)
	}
	keeper, err := genesis.KeeperAddress()
	if err != nil {
		logger.Error("invalid keeper address", slog.Any("error", err))
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "market"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager, err := state.NewManager(db)
	if err != nil {
		logger.Error("failed to open market state", slog.Any("error", err))
		os.Exit(1)
	}

	priceFeed, rateFeed, err := seedFeeds(genesis)
	if err != nil {
		logger.Error("invalid genesis oracle values", slog.Any("error", err))
		os.Exit(1)
	}

	pauses := config.NewPauseSet(cfg.Pauses)

	engine := credit.NewEngine(feeRecipient, marketCfg)
	engine.SetState(manager)
	engine.SetPauses(pauses)
	engine.SetPriceFeed(priceFeed)
	engine.SetRateFeed(rateFeed)
	engine.SetVenue(venue.New())
	if !keeper.IsZero() {
		engine.SetKeeper(keeper)
	}

	if err := seedAccounts(engine, genesis); err != nil {
		logger.Error("failed to seed genesis accounts", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(engine, manager, pauses, priceFeed, rateFeed, cfg, logger)
	logger.Info("market node ready",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("feeRecipient", feeRecipient.String()),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// seedFeeds builds the static oracle feeds from genesis values. A relay
// process updates them at runtime through the admin surface.
func seedFeeds(genesis *config.Genesis) (*oracle.StaticPriceFeed, *oracle.StaticRateFeed, error) {
	price, err := config.ParseAmount(genesis.Oracle.CollateralPrice)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle.collateralPrice: %w", err)
	}
	rate, err := config.ParseAmount(genesis.Oracle.VariableBorrowRate)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle.variableBorrowRate: %w", err)
	}
	priceFeed := oracle.NewStaticPriceFeed(price, genesis.Oracle.PriceDecimals)
	rateFeed := oracle.NewStaticRateFeed(oracle.RateSnapshot{
		VariablePoolBorrowRate: rate,
		UpdatedAt:              uint64(time.Now().Unix()),
	})
	return priceFeed, rateFeed, nil
}

// seedAccounts prefunds the genesis balances.
func seedAccounts(engine *credit.Engine, genesis *config.Genesis) error {
	for _, funds := range genesis.Accounts {
		addr, err := crypto.DecodeAddress(funds.Address)
		if err != nil {
			return fmt.Errorf("account %s: %w", funds.Address, err)
		}
		cash, err := config.ParseAmount(funds.Cash)
		if err != nil {
			return fmt.Errorf("account %s cash: %w", funds.Address, err)
		}
		if cash.Sign() > 0 {
			if err := engine.DepositCash(addr, cash); err != nil {
				return err
			}
		}
		collateral, err := config.ParseAmount(funds.Collateral)
		if err != nil {
			return fmt.Errorf("account %s collateral: %w", funds.Address, err)
		}
		if collateral.Sign() > 0 {
			if err := engine.DepositCollateral(addr, collateral); err != nil {
				return err
			}
		}
	}
	return nil
}
