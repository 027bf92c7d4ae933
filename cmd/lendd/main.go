package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"creditlend/config"
	"creditlend/crypto"
	"creditlend/native/common"
	"creditlend/native/credit"
	"creditlend/native/lending"
	"creditlend/native/pricing"
	"creditlend/native/vault"
	"creditlend/observability/logging"
	"creditlend/rpc"
	"creditlend/storage"
)

const rpcTokenEnv = "LENDD_RPC_TOKEN"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("lendd", cfg.Environment, cfg.LogLevel)

	admin, err := resolveAdminAddress(cfg.AdminAddress)
	if err != nil {
		logger.Error("Failed to resolve admin address", slog.Any("error", err))
		os.Exit(1)
	}

	authToken := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if authToken == "" {
		logger.Error("Missing RPC auth token", slog.String("env", rpcTokenEnv))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	kv := storage.NewKV(db)

	allow := credit.NewAllowList()
	pauses := common.NewPauseRegistry()

	accumulator := credit.NewAccumulator(credit.NewStore(kv), allow)
	accumulator.SetPauses(pauses)
	scores := credit.NewScoreEngine(credit.NewStore(kv))

	oracle := pricing.NewManualOracle(time.Duration(cfg.Oracle.MaxAgeSeconds) * time.Second)

	threshold := new(big.Int).Mul(
		new(big.Int).SetUint64(cfg.Lending.LiquidationThresholdMilli),
		big.NewInt(1_000_000_000_000_000),
	)
	params := lending.RiskParameters{
		LiquidationThreshold: threshold,
		LiquidationBonusBps:  cfg.Lending.LiquidationBonusBps,
	}

	moduleAddr := moduleTreasuryAddress()
	engine := lending.NewEngine(moduleAddr, admin, params)
	engine.SetState(lending.NewStore(kv))
	engine.SetOracle(oracle)
	engine.SetScoreSource(scores)
	engine.SetCreditRecorder(accumulator)
	engine.SetPauses(pauses)
	engine.SetLogger(logger)

	// The lending engine reports repayments, asset usage and pool funding
	// into the credit ledger under its own treasury address.
	allow.Grant(moduleAddr)
	allow.Grant(admin)

	vaults := make(map[string]*vault.Vault, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		if err := engine.SetAssetSupported(admin, asset.Symbol, asset.Supported); err != nil {
			logger.Error("Failed to register asset", slog.String("asset", asset.Symbol), slog.Any("error", err))
			os.Exit(1)
		}
		if err := engine.SetInterestRate(admin, asset.Symbol, asset.InterestRateBps); err != nil {
			logger.Error("Failed to set interest rate", slog.String("asset", asset.Symbol), slog.Any("error", err))
			os.Exit(1)
		}
		symbol := lending.NormalizeAsset(asset.Symbol)
		treasury := vaultTreasuryAddress(symbol)
		v := vault.New(symbol)
		v.SetFunds(engine, treasury)
		v.SetScoreSource(scores)
		v.SetSavingsReporter(accumulator)
		v.SetLogger(logger)
		// Each vault reports savings balances under its treasury identity.
		allow.Grant(treasury)
		vaults[symbol] = v
	}

	logger.Info("lending daemon initialised",
		slog.String("dataDir", cfg.DataDir),
		slog.String("admin", admin.String()),
		slog.String("module", moduleAddr.String()),
		slog.Int("assets", len(cfg.Assets)),
	)

	server := rpc.NewServer(logger, engine, scores, allow, oracle, pauses, vaults, admin, authToken)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// resolveAdminAddress parses the configured bech32 admin address, generating
// an ephemeral key when none is configured so development nodes can boot.
func resolveAdminAddress(configured string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(configured)
	if trimmed != "" {
		return crypto.DecodeAddress(trimmed)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return crypto.Address{}, err
	}
	addr := key.PubKey().Address()
	fmt.Printf("WARNING: no AdminAddress configured; generated ephemeral admin %s\n", addr.String())
	return addr, nil
}

// moduleTreasuryAddress derives the deterministic account that custodies all
// pooled collateral and reserve liquidity.
func moduleTreasuryAddress() crypto.Address {
	hash := ethcrypto.Keccak256([]byte("creditlend/lending/treasury"))
	return crypto.NewAddress(crypto.ModulePrefix, hash[12:])
}

// vaultTreasuryAddress derives the per-asset account that custodies vault
// deposits.
func vaultTreasuryAddress(asset string) crypto.Address {
	hash := ethcrypto.Keccak256([]byte("creditlend/vault/treasury/" + asset))
	return crypto.NewAddress(crypto.ModulePrefix, hash[12:])
}
