package folio

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvRouterURL overrides the remote router URL of the configuration file.
const EnvRouterURL = "FOLIO_ROUTER_URL"

// Config is the definition of a vault, read from a YAML file.
//
//	name: balanced
//	currency: USD
//	module: 0x...
//	manager: 0x...
//	factory: 0x...
//	base_asset: 0x...
//	base_symbol: USDT
//	assets:
//	  - token: 0x...
//	    symbol: WETH
//	    weight: "0.6"
//	fee:
//	  annual_percent: "6"
//	router:
//	  kind: pool
//	  pools: pools.json
type Config struct {
	Name           string        `yaml:"name"`
	Currency       string        `yaml:"currency"` // ISO code used to display base currency values
	Module         string        `yaml:"module"`
	Manager        string        `yaml:"manager"`
	Factory        string        `yaml:"factory"`
	Implementation string        `yaml:"implementation"` // cloned by the factory, the module by default
	Salt           string        `yaml:"salt"`
	BaseAsset      string        `yaml:"base_asset"`
	BaseSymbol     string        `yaml:"base_symbol"`
	Assets         []AssetConfig `yaml:"assets"`

	Fee struct {
		AnnualPercent string `yaml:"annual_percent"`
		RatePerSecond string `yaml:"rate_per_second"` // raw 1e18 scaled units, wins over annual_percent
	} `yaml:"fee"`

	Router struct {
		Kind  string `yaml:"kind"`  // "pool" or "remote"
		URL   string `yaml:"url"`   // remote router endpoint
		Pools string `yaml:"pools"` // pool state file
	} `yaml:"router"`
}

// AssetConfig is a basket asset in the configuration file.
type AssetConfig struct {
	Token  string `yaml:"token"`
	Symbol string `yaml:"symbol"`
	Weight string `yaml:"weight"` // whole units, e.g. "0.6"
}

// LoadConfig reads and validates the configuration file. Environment variables
// override the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config %q: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	cfg.overrideWithEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) overrideWithEnv() {
	if url := os.Getenv(EnvRouterURL); url != "" {
		c.Router.URL = url
	}
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var errs error
	for _, f := range []struct{ name, value string }{
		{"module", c.Module},
		{"manager", c.Manager},
		{"factory", c.Factory},
		{"base_asset", c.BaseAsset},
	} {
		if _, err := parseAddress(f.value); err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", f.name, err))
		}
	}
	if c.Implementation != "" {
		if _, err := parseAddress(c.Implementation); err != nil {
			errs = errors.Join(errs, fmt.Errorf("implementation: %w", err))
		}
	}
	if _, err := c.Basket(); err != nil {
		errs = errors.Join(errs, err)
	}
	if _, err := c.FeeRate(); err != nil {
		errs = errors.Join(errs, err)
	}
	if _, err := c.SaltBytes(); err != nil {
		errs = errors.Join(errs, err)
	}
	return errs
}

func (c *Config) ModuleAddress() common.Address  { return common.HexToAddress(c.Module) }
func (c *Config) ManagerAddress() common.Address { return common.HexToAddress(c.Manager) }
func (c *Config) FactoryAddress() common.Address { return common.HexToAddress(c.Factory) }
func (c *Config) BaseAddress() common.Address    { return common.HexToAddress(c.BaseAsset) }

// ImplementationAddress returns the contract cloned by the factory for this vault.
func (c *Config) ImplementationAddress() common.Address {
	if c.Implementation == "" {
		return c.ModuleAddress()
	}
	return common.HexToAddress(c.Implementation)
}

// Symbols returns the symbols given to the base asset and the basket tokens.
func (c *Config) Symbols() map[common.Address]string {
	symbols := make(map[common.Address]string)
	if c.BaseSymbol != "" {
		symbols[c.BaseAddress()] = c.BaseSymbol
	}
	for _, a := range c.Assets {
		if a.Symbol != "" {
			symbols[common.HexToAddress(a.Token)] = a.Symbol
		}
	}
	return symbols
}

// Basket parses the basket assets.
func (c *Config) Basket() (Basket, error) {
	var errs error
	tokens := make([]common.Address, len(c.Assets))
	weights := make([]Amount, len(c.Assets))
	for i, a := range c.Assets {
		token, err := parseAddress(a.Token)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("asset #%d token: %w", i, err))
		}
		weight, err := ParseAmount(a.Weight)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("asset #%d weight: %w", i, err))
		}
		tokens[i], weights[i] = token, weight
	}
	if errs != nil {
		return Basket{}, errs
	}
	return NewBasket(tokens, weights)
}

// FeeRate returns the fee rate per second, 1e18 scaled.
func (c *Config) FeeRate() (Amount, error) {
	if c.Fee.RatePerSecond != "" {
		rate, err := ParseUnits(c.Fee.RatePerSecond)
		if err != nil {
			return Amount{}, fmt.Errorf("fee rate_per_second: %w", err)
		}
		return rate, nil
	}
	if c.Fee.AnnualPercent == "" {
		return Amount{}, nil
	}
	percent, err := decimal.NewFromString(c.Fee.AnnualPercent)
	if err != nil || percent.IsNegative() {
		return Amount{}, fmt.Errorf("fee annual_percent %q: %w", c.Fee.AnnualPercent, ErrInvalidAmount)
	}
	return RateFromAnnualPercent(percent), nil
}

// SaltBytes returns the deployment salt: the hex value left padded to 32
// bytes, or the keccak256 hash of the vault name when no salt is given.
func (c *Config) SaltBytes() ([32]byte, error) {
	if c.Salt == "" {
		return SaltFromString(c.Name), nil
	}
	b, err := hexutil.Decode(c.Salt)
	if err != nil {
		return [32]byte{}, fmt.Errorf("salt %q: %w", c.Salt, err)
	}
	if len(b) > 32 {
		return [32]byte{}, fmt.Errorf("salt %q is longer than 32 bytes", c.Salt)
	}
	return [32]byte(common.BytesToHash(b)), nil
}

// SaltFromString derives a deployment salt from a name.
func SaltFromString(name string) [32]byte {
	return [32]byte(crypto.Keccak256Hash([]byte(name)))
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q is not a hex address", s)
	}
	a := common.HexToAddress(s)
	if a == (common.Address{}) {
		return common.Address{}, errors.New("address is zero")
	}
	return a, nil
}
