package cmd

import (
	"io"
	"os"
	"strings"

	dbm "github.com/cosmos/cosmos-db"
	"github.com/spf13/cobra"

	"cosmossdk.io/log"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/config"
	"github.com/cosmos/cosmos-sdk/client/debug"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/keys"
	"github.com/cosmos/cosmos-sdk/client/rpc"
	"github.com/cosmos/cosmos-sdk/server"
	serverconfig "github.com/cosmos/cosmos-sdk/server/config"
	servertypes "github.com/cosmos/cosmos-sdk/server/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authcmd "github.com/cosmos/cosmos-sdk/x/auth/client/cli"
	"github.com/cosmos/cosmos-sdk/x/auth/types"
	genutilcli "github.com/cosmos/cosmos-sdk/x/genutil/client/cli"

	"github.com/tide-protocol/tidechain/app"
	"github.com/tide-protocol/tidechain/x/demo/launchpad"
)

// NewRootCmd creates the root command for tided
func NewRootCmd() *cobra.Command {
	// Set config
	initConfig()

	encodingConfig := app.MakeEncodingConfig()
	initClientCtx := client.Context{}.
		WithCodec(encodingConfig.Codec).
		WithInterfaceRegistry(encodingConfig.InterfaceRegistry).
		WithTxConfig(encodingConfig.TxConfig).
		WithLegacyAmino(encodingConfig.Amino).
		WithInput(os.Stdin).
		WithAccountRetriever(types.AccountRetriever{}).
		WithHomeDir(app.DefaultNodeHome).
		WithViper("TIDE")

	rootCmd := &cobra.Command{
		Use:   "tided",
		Short: "Tide - Capital Raise Protocol Chain",
		Long: `Tide is a Layer 1 blockchain for on-chain capital raises.

Key Features:
- Pooled backer deposits with proportional, transferable supporter passes
- Cumulative reward index for O(1) pro-rata revenue distribution
- Time-gated tranche release of raised principal to beneficiaries
- Idle capital staking through the chain's own validator set

Learn more at https://tide-protocol.io`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			initClientCtx, err := client.ReadPersistentCommandFlags(initClientCtx, cmd.Flags())
			if err != nil {
				return err
			}
			initClientCtx, err = config.ReadFromClientConfig(initClientCtx)
			if err != nil {
				return err
			}
			if err := client.SetCmdClientContextHandler(initClientCtx, cmd); err != nil {
				return err
			}
			customAppTemplate, customAppConfig := initAppConfig()
			if err := server.InterceptConfigsPreRunHandler(cmd, customAppTemplate, customAppConfig, nil); err != nil {
				return err
			}
			return validateAppConfig(cmd)
		},
	}

	initRootCmd(rootCmd, encodingConfig)

	return rootCmd
}

// initConfig sets the SDK configuration
func initConfig() {
	// Set the address prefixes
	config := sdk.GetConfig()
	config.SetBech32PrefixForAccount(app.AccountAddressPrefix, app.AccountAddressPrefix+"pub")
	config.SetBech32PrefixForValidator(app.AccountAddressPrefix+"valoper", app.AccountAddressPrefix+"valoperpub")
	config.SetBech32PrefixForConsensusNode(app.AccountAddressPrefix+"valcons", app.AccountAddressPrefix+"valconspub")
	config.Seal()
}

// AppConfig defines custom app configuration for Tide.
type AppConfig struct {
	serverconfig.Config
	Launch LaunchConfig `mapstructure:"launch"`
}

// LaunchConfig defines node-level tuning for the launch module surfaces.
type LaunchConfig struct {
	MetricsCacheSize     int `mapstructure:"metrics-cache-size"`
	DepositRatePerSecond int `mapstructure:"deposit-rate-per-second"`
	DepositBurstSize     int `mapstructure:"deposit-burst-size"`
}

// initAppConfig sets custom app configuration
func initAppConfig() (string, interface{}) {
	customAppTemplate := strings.TrimSpace(serverconfig.DefaultConfigTemplate) + "\n\n" + strings.TrimSpace(`
[launch]
# Number of per-height metric renders kept by the scrape cache
metrics-cache-size = {{ .Launch.MetricsCacheSize }}

# Per-address deposit transactions allowed per second
deposit-rate-per-second = {{ .Launch.DepositRatePerSecond }}

# Per-address deposit burst allowance
deposit-burst-size = {{ .Launch.DepositBurstSize }}
`) + "\n"

	customAppConfig := AppConfig{
		Config: *serverconfig.DefaultConfig(),
		Launch: LaunchConfig{
			MetricsCacheSize:     app.DefaultMetricsCacheSize,
			DepositRatePerSecond: 10,
			DepositBurstSize:     20,
		},
	}
	customAppConfig.MinGasPrices = "0.001utide"

	return customAppTemplate, customAppConfig
}

// initRootCmd adds subcommands to the root command
func initRootCmd(rootCmd *cobra.Command, encodingConfig app.EncodingConfig) {
	cfg := sdk.GetConfig()
	cfg.Seal()

	rootCmd.AddCommand(
		genutilcli.InitCmd(app.ModuleBasics, app.DefaultNodeHome),
		genutilcli.MigrateGenesisCmd(genesisMigrationMap()),
		debug.Cmd(),
	)

	server.AddCommands(rootCmd, app.DefaultNodeHome, newApp, appExport, addModuleInitFlags)

	// Add query and tx commands
	rootCmd.AddCommand(
		queryCommand(),
		txCommand(),
		auditCommand(),
		launchpad.DemoCommand(),
		keys.Commands(),
	)
}

// newApp creates a new Tide app for the server
func newApp(
	logger log.Logger,
	db dbm.DB,
	traceStore io.Writer,
	appOpts servertypes.AppOptions,
) servertypes.Application {
	return app.New(
		logger,
		db,
		traceStore,
		true,
		appOpts,
	)
}

// appExport exports app state
func appExport(
	logger log.Logger,
	db dbm.DB,
	traceStore io.Writer,
	height int64,
	forZeroHeight bool,
	jailAllowedAddrs []string,
	appOpts servertypes.AppOptions,
	modulesToExport []string,
) (servertypes.ExportedApp, error) {
	tideApp := app.New(
		logger,
		db,
		traceStore,
		false,
		appOpts,
	)

	// Export genesis
	return tideApp.ExportAppStateAndValidators(forZeroHeight, jailAllowedAddrs, modulesToExport)
}

// addModuleInitFlags adds module-specific init flags
func addModuleInitFlags(startCmd *cobra.Command) {
	// Add custom flags here
}

// queryCommand returns the query command group
func queryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        "query",
		Aliases:                    []string{"q"},
		Short:                      "Querying subcommands",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		rpc.ValidatorCommand(),
		rpc.QueryEventForTxCmd(),
		rpc.WaitTxCmd(),
		authcmd.QueryTxsByEventsCmd(),
		authcmd.QueryTxCmd(),
	)

	cmd.PersistentFlags().String(flags.FlagChainID, "", "The network chain ID")

	return cmd
}

// txCommand returns the tx command group
func txCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        "tx",
		Short:                      "Transactions subcommands",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		authcmd.GetSignCommand(),
		authcmd.GetSignBatchCommand(),
		authcmd.GetMultiSignCommand(),
		authcmd.GetMultiSignBatchCmd(),
		authcmd.GetValidateSignaturesCommand(),
		authcmd.GetBroadcastCommand(),
		authcmd.GetEncodeCommand(),
		authcmd.GetDecodeCommand(),
	)

	cmd.PersistentFlags().String(flags.FlagChainID, "", "The network chain ID")

	return cmd
}
