// Package config loads settings from the environment, .env files and an
// optional swapper.toml. Environment wins over the file; the file wins over
// defaults. Keys are accepted in UPPER_CASE and lower_case.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/ligun0805/batch-swapper/internal/ethunit"
)

const DefaultFile = "swapper.toml"

// Settings keeps all configuration options.
type Settings struct {
	RPCURL            string
	ChainID           int64 // 0 asks the node
	FundingPrivateKey string
	WalletsFile       string
	TokensFile        string
	StatsFile         string
	StatsDB           string // empty disables the sqlite ledger

	GasCeiling       *big.Int // wei
	BufferMultiplier float64
	PriceFloor       *big.Int // wei
	PriceCacheTTL    time.Duration

	FundingChunkSize  int
	SwapBatchSize     int
	AirdropChunkDelay time.Duration
	SwapBatchDelay    time.Duration
	ReceiptTimeout    time.Duration
	ReceiptPoll       time.Duration
	ConcurrentSigners bool

	AirdropAmount *big.Int
	SwapAmount    *big.Int
	SwapAmountMax *big.Int // random in [SwapAmount, SwapAmountMax] when greater
	SwapMinOut    *big.Int // amountOutMin in token base units
	RouterV2      string
	RouterV3      string
	WETH          string
	V3Fee         uint32

	RPCRPS   float64
	RPCBurst int

	LogDir     string
	LogLevel   string
	ListenAddr string
}

// source resolves a key from the environment first, then the TOML table.
type source struct {
	file map[string]interface{}
}

func (s source) get(key, def string) string {
	for _, k := range []string{strings.ToUpper(key), strings.ToLower(key)} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	if v, ok := s.file[strings.ToLower(key)]; ok {
		if str := strings.TrimSpace(fmt.Sprint(v)); str != "" {
			return str
		}
	}
	return def
}

// Load reads .env and .env.local (if present, never overriding the real
// environment), then path (DefaultFile when empty; a missing file is fine).
func Load(path string) (Settings, error) {
	for _, f := range []string{".env", ".env.local"} {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return Settings{}, errors.Wrapf(err, "load %s", f)
			}
		}
	}
	if path == "" {
		path = DefaultFile
	}
	src := source{file: map[string]interface{}{}}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &src.file); err != nil {
			return Settings{}, errors.Wrapf(err, "decode %s", path)
		}
		lower := make(map[string]interface{}, len(src.file))
		for k, v := range src.file {
			lower[strings.ToLower(k)] = v
		}
		src.file = lower
	}
	return parse(src)
}

func parse(src source) (Settings, error) {
	var errs []string
	fail := func(key string, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", key, err))
	}
	getInt := func(key string, def int) int {
		s := src.get(key, "")
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			fail(key, err)
			return def
		}
		return n
	}
	getInt64 := func(key string, def int64) int64 {
		s := src.get(key, "")
		if s == "" {
			return def
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			fail(key, err)
			return def
		}
		return n
	}
	getFloat := func(key string, def float64) float64 {
		s := src.get(key, "")
		if s == "" {
			return def
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			fail(key, err)
			return def
		}
		return n
	}
	getBool := func(key string, def bool) bool {
		s := strings.ToLower(src.get(key, ""))
		if s == "" {
			return def
		}
		return s == "1" || s == "true" || s == "yes" || s == "on"
	}
	getMillis := func(key string, def int64) time.Duration {
		return time.Duration(getInt64(key, def)) * time.Millisecond
	}
	getUnits := func(key, def string, parseFn func(string) (*big.Int, error)) *big.Int {
		s := src.get(key, def)
		if s == "" {
			return nil
		}
		v, err := parseFn(s)
		if err != nil {
			fail(key, err)
			return nil
		}
		return v
	}
	getRaw := func(s string) (*big.Int, error) { return ethunit.ParseUnits(s, 0) }

	st := Settings{}
	st.RPCURL = src.get("rpc_url", "http://127.0.0.1:8545")
	st.ChainID = getInt64("chain_id", 0)
	st.FundingPrivateKey = src.get("funding_private_key", "")
	st.WalletsFile = src.get("wallets_file", "wallets.json")
	st.TokensFile = src.get("tokens_file", "tokens.json")
	st.StatsFile = src.get("stats_file", "stats/stats.json")
	st.StatsDB = src.get("stats_db", "")

	st.GasCeiling = getUnits("gas_ceiling_eth", "0.01", ethunit.ParseEther)
	st.BufferMultiplier = getFloat("buffer_multiplier", 1.2)
	st.PriceFloor = getUnits("price_floor_gwei", "0.001", ethunit.ParseGwei)
	st.PriceCacheTTL = getMillis("price_cache_ttl_ms", 30_000)

	st.FundingChunkSize = getInt("funding_chunk_size", 500)
	st.SwapBatchSize = getInt("swap_batch_size", 50)
	st.AirdropChunkDelay = getMillis("airdrop_chunk_delay_ms", 3000)
	st.SwapBatchDelay = getMillis("swap_batch_delay_ms", 1500)
	st.ReceiptTimeout = getMillis("receipt_timeout_ms", 180_000)
	st.ReceiptPoll = getMillis("receipt_poll_ms", 2000)
	st.ConcurrentSigners = getBool("concurrent_signers", true)

	st.AirdropAmount = getUnits("airdrop_amount_eth", "0.001", ethunit.ParseEther)
	st.SwapAmount = getUnits("swap_amount_eth", "0.0001", ethunit.ParseEther)
	st.SwapAmountMax = getUnits("swap_amount_max_eth", "", ethunit.ParseEther)
	st.SwapMinOut = getUnits("swap_min_out", "0", getRaw)
	st.RouterV2 = src.get("router_v2", "")
	st.RouterV3 = src.get("router_v3", "")
	st.WETH = src.get("weth", "")
	st.V3Fee = uint32(getInt64("v3_fee", 3000))

	st.RPCRPS = getFloat("rpc_rps", 20)
	st.RPCBurst = getInt("rpc_burst", 10)

	st.LogDir = src.get("log_dir", "logs")
	st.LogLevel = strings.ToLower(src.get("log_level", "info"))
	st.ListenAddr = src.get("listen_addr", ":8090")

	if len(errs) > 0 {
		return st, errors.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return st, nil
}

// Validate checks the settings every command needs.
func (s Settings) Validate() error {
	switch {
	case s.RPCURL == "":
		return errors.New("config: RPC_URL is required")
	case s.GasCeiling == nil || s.GasCeiling.Sign() <= 0:
		return errors.New("config: GAS_CEILING_ETH must be > 0")
	case s.BufferMultiplier < 1:
		return errors.Errorf("config: BUFFER_MULTIPLIER %.3f must be >= 1", s.BufferMultiplier)
	case s.PriceFloor == nil || s.PriceFloor.Sign() <= 0:
		return errors.New("config: PRICE_FLOOR_GWEI must be > 0")
	case s.FundingChunkSize <= 0 || s.SwapBatchSize <= 0:
		return errors.New("config: chunk sizes must be > 0")
	case s.ReceiptTimeout <= 0 || s.ReceiptPoll <= 0:
		return errors.New("config: receipt timeout and poll interval must be > 0")
	case s.RPCRPS <= 0 || s.RPCBurst <= 0:
		return errors.New("config: RPC_RPS and RPC_BURST must be > 0")
	}
	if s.SwapAmountMax != nil && s.SwapAmount != nil && s.SwapAmountMax.Sign() > 0 && s.SwapAmountMax.Cmp(s.SwapAmount) < 0 {
		return errors.New("config: SWAP_AMOUNT_MAX_ETH is below SWAP_AMOUNT_ETH")
	}
	return nil
}

// RequireSwap checks the addresses needed for swaps through the given router.
func (s Settings) RequireSwap(v3 bool) error {
	router, key := s.RouterV2, "ROUTER_V2"
	if v3 {
		router, key = s.RouterV3, "ROUTER_V3"
	}
	if !common.IsHexAddress(router) {
		return errors.Errorf("config: %s must be a hex address, got %q", key, router)
	}
	if !common.IsHexAddress(s.WETH) {
		return errors.Errorf("config: WETH must be a hex address, got %q", s.WETH)
	}
	return nil
}

// RequireFunding checks the funding key is present.
func (s Settings) RequireFunding() error {
	if s.FundingPrivateKey == "" {
		return errors.New("config: FUNDING_PRIVATE_KEY is required")
	}
	return nil
}
