package cmd

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/cosmos/cosmos-sdk/server"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func validateAppConfig(cmd *cobra.Command) error {
	serverCtx := server.GetServerContextFromCmd(cmd)
	return validateAppConfigFromViper(serverCtx.Viper)
}

func validateAppConfigFromViper(v *viper.Viper) error {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to decode app config: %w", err)
	}

	return cfg.ValidateBasic()
}

// ValidateBasic performs comprehensive validation of app.toml configuration.
func (c AppConfig) ValidateBasic() error {
	if err := c.Config.ValidateBasic(); err != nil {
		return err
	}

	if _, err := sdk.ParseDecCoins(c.MinGasPrices); err != nil {
		return fmt.Errorf("invalid min gas prices: %w", err)
	}

	if c.API.Enable {
		if err := validateListenAddress("api.address", c.API.Address); err != nil {
			return err
		}
		if c.API.MaxOpenConnections <= 0 {
			return fmt.Errorf("api.max-open-connections must be positive")
		}
	}

	if c.GRPC.Enable {
		if err := validateListenAddress("grpc.address", c.GRPC.Address); err != nil {
			return err
		}
		if c.GRPC.MaxRecvMsgSize <= 0 || c.GRPC.MaxSendMsgSize <= 0 {
			return fmt.Errorf("grpc max message sizes must be positive")
		}
	}

	if err := validateLaunchConfig(c.Launch); err != nil {
		return err
	}

	return nil
}

func validateLaunchConfig(cfg LaunchConfig) error {
	if cfg.MetricsCacheSize < 0 {
		return fmt.Errorf("launch.metrics-cache-size must be non-negative")
	}
	if cfg.DepositRatePerSecond < 0 {
		return fmt.Errorf("launch.deposit-rate-per-second must be non-negative")
	}
	if cfg.DepositBurstSize < 0 {
		return fmt.Errorf("launch.deposit-burst-size must be non-negative")
	}
	if cfg.DepositRatePerSecond > 0 && cfg.DepositBurstSize > 0 &&
		cfg.DepositBurstSize < cfg.DepositRatePerSecond {
		return fmt.Errorf("launch.deposit-burst-size must be at least launch.deposit-rate-per-second")
	}
	return nil
}

func validateListenAddress(field, addr string) error {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}

	if strings.HasPrefix(trimmed, "unix://") {
		if len(strings.TrimPrefix(trimmed, "unix://")) == 0 {
			return fmt.Errorf("%s unix socket path is empty", field)
		}
		return nil
	}

	if strings.HasPrefix(trimmed, "tcp://") {
		trimmed = strings.TrimPrefix(trimmed, "tcp://")
	}

	host, port, err := net.SplitHostPort(trimmed)
	if err != nil {
		return fmt.Errorf("%s must be host:port (or tcp://host:port): %w", field, err)
	}
	if host == "" {
		return fmt.Errorf("%s host cannot be empty", field)
	}
	if port == "" {
		return fmt.Errorf("%s port cannot be empty", field)
	}
	if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("%s port must be in [1, 65535]", field)
	}

	return nil
}
