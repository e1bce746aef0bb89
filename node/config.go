// Package node wires the sale daemon: store, contract, executor, JSON-RPC
// and metrics servers.
package node

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/log"
	"github.com/Thorstarter/thorstarter-terra/sale"
	"github.com/Thorstarter/thorstarter-terra/treasury"
	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	DBMemory = "memory"
	DBSQLite = "sqlite"
)

// Config holds the daemon configuration. Every field reads a SALE_*
// environment variable; the command line overrides the environment.
type Config struct {
	// DataDir is the root directory for the sqlite store.
	DataDir string `env:"SALE_DATADIR" envDefault:"sale-data"`

	// DB selects the store driver (memory, sqlite).
	DB string `env:"SALE_DB" envDefault:"sqlite"`

	// RPCAddr is the listen address of the JSON-RPC server.
	RPCAddr string `env:"SALE_RPC_ADDR" envDefault:"127.0.0.1:8545"`

	// MetricsAddr is the listen address of the Prometheus endpoint. Empty
	// disables it.
	MetricsAddr string `env:"SALE_METRICS_ADDR" envDefault:"127.0.0.1:9090"`

	LogLevel  string `env:"SALE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"SALE_LOG_FORMAT" envDefault:"text"`

	// Denom is the native contribution currency.
	Denom string `env:"SALE_DENOM" envDefault:"uusd"`

	// AddressCodec is plain, hex or bech32:<hrp>.
	AddressCodec string `env:"SALE_ADDRESS_CODEC" envDefault:"plain"`

	// SaleAddress is the sale's own account.
	SaleAddress string `env:"SALE_ADDRESS" envDefault:"sale"`

	// Owner, when set, instantiates an empty sale owned by it on first
	// start.
	Owner string `env:"SALE_OWNER"`

	// Token and TokenReserve stock the sale's token balance on first start.
	Token        string `env:"SALE_TOKEN"`
	TokenReserve string `env:"SALE_TOKEN_RESERVE" envDefault:"0"`

	// TaxRate is a decimal fraction below 1, e.g. "0.001". TaxCap bounds
	// the tax on one transfer, so a zero cap charges nothing.
	TaxRate      string `env:"SALE_TAX_RATE" envDefault:"0"`
	TaxCap       string `env:"SALE_TAX_CAP" envDefault:"0"`
	TaxCollector string `env:"SALE_TAX_COLLECTOR"`

	FcfsCap      string `env:"SALE_FCFS_CAP" envDefault:"250000000"`
	ReserveGuard bool   `env:"SALE_RESERVE_GUARD" envDefault:"true"`

	// RequireSignatures rejects unsigned state-changing RPC calls.
	RequireSignatures bool `env:"SALE_REQUIRE_SIGNATURES" envDefault:"false"`
}

// DefaultConfig returns the built-in defaults, ignoring the environment.
func DefaultConfig() Config {
	var c Config
	// Only fails on malformed envDefault tags.
	if err := env.ParseWithOptions(&c, env.Options{Environment: map[string]string{}}); err != nil {
		panic(err)
	}
	return c
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (Config, error) {
	return loadConfig(env.ToMap(os.Environ()))
}

func loadConfig(environ map[string]string) (Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	switch c.DB {
	case DBMemory:
	case DBSQLite:
		if c.DataDir == "" {
			return errors.New("config: datadir must not be empty")
		}
	default:
		return fmt.Errorf("config: unknown db %q", c.DB)
	}
	if _, _, err := net.SplitHostPort(c.RPCAddr); err != nil {
		return fmt.Errorf("config: rpc addr: %w", err)
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return fmt.Errorf("config: metrics addr: %w", err)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if _, err := c.SaleOptions(); err != nil {
		return err
	}
	if _, err := c.OracleConfig(); err != nil {
		return err
	}
	reserve, err := types.ParseAmount(c.TokenReserve)
	if err != nil {
		return fmt.Errorf("config: token reserve: %w", err)
	}
	if !reserve.IsZero() && c.Token == "" {
		return errors.New("config: token reserve without token")
	}
	codec, _ := types.ParseAddressCodec(c.AddressCodec)
	if _, ok := codec.(types.AccountEncoder); c.RequireSignatures && !ok {
		return fmt.Errorf("config: signed requests need a hex or bech32 address codec, have %q", c.AddressCodec)
	}
	for name, addr := range map[string]string{
		"sale address":  c.SaleAddress,
		"owner":         c.Owner,
		"token":         c.Token,
		"tax collector": c.TaxCollector,
	} {
		if addr == "" && name != "sale address" {
			continue
		}
		if _, err := codec.Canonicalize(addr); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	return nil
}

// SaleOptions returns the engine options the configuration selects.
func (c *Config) SaleOptions() (sale.Options, error) {
	codec, err := types.ParseAddressCodec(c.AddressCodec)
	if err != nil {
		return sale.Options{}, fmt.Errorf("config: %w", err)
	}
	fcfs, err := types.ParseAmount(c.FcfsCap)
	if err != nil {
		return sale.Options{}, fmt.Errorf("config: fcfs cap: %w", err)
	}
	opts := sale.Options{
		Denom:         c.Denom,
		FcfsWalletCap: fcfs,
		ReserveGuard:  c.ReserveGuard,
		Codec:         codec,
	}
	if err := opts.Validate(); err != nil {
		return sale.Options{}, fmt.Errorf("config: %w", err)
	}
	return opts, nil
}

// OracleConfig returns the static tax schedule. The cap applies to every
// denom.
func (c *Config) OracleConfig() (treasury.StaticOracleConfig, error) {
	if _, err := treasury.ParseRate(c.TaxRate); err != nil {
		return treasury.StaticOracleConfig{}, fmt.Errorf("config: tax rate: %w", err)
	}
	taxCap, err := types.ParseAmount(c.TaxCap)
	if err != nil {
		return treasury.StaticOracleConfig{}, fmt.Errorf("config: tax cap: %w", err)
	}
	return treasury.StaticOracleConfig{Rate: c.TaxRate, DefaultCap: taxCap}, nil
}

// ResolvePath resolves a path relative to the data directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// DBPath is the sqlite database file.
func (c *Config) DBPath() string {
	return c.ResolvePath("sale.db")
}
