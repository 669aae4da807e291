package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string
var logger *zap.Logger
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "securescan",
	Short: "Automated external recon scanner (for authorized targets only)",
	Long: `SecureScan probes a target for exposed services, missing HTTP security
headers, deprecated TLS protocol versions and known CVEs, and produces
JSON or PDF reports. Only scan hosts you are authorized to test.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init config
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath("$HOME")
			viper.SetConfigName(".securescan")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("SECURESCAN")
		viper.AutomaticEnv()

		_ = viper.ReadInConfig()
		applyConfigDefaults()

		// init logger
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.securescan.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}
