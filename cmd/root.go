package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/endorses/colorcat/cmd/buttons"
	"github.com/endorses/colorcat/cmd/colorize"
	"github.com/endorses/colorcat/cmd/rules"
	"github.com/endorses/colorcat/internal/pkg/constants"
	"github.com/endorses/colorcat/internal/pkg/logger"
	"github.com/endorses/colorcat/internal/pkg/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cc",
	Short: "colorcat paints packets",
	Long: fmt.Sprintf(`colorcat %s - Packet coloring rules for capture files

Packets are classified against an ordered list of color rules read from
~/.config/colorcat/colorfilters (or %s/colorfilters when the user has none).
The first enabled rule whose display filter matches paints the packet.`, version.Short(), constants.GlobalDataDir),
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Configure(os.Stderr, viper.GetString("log.level"), viper.GetString("log.format"))
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSubCommandPalattes() {
	rootCmd.AddCommand(colorize.ColorizeCmd)
	rootCmd.AddCommand(rules.RulesCmd)
	rootCmd.AddCommand(buttons.ButtonsCmd)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Initialize structured logging
	logger.Initialize()

	addSubCommandPalattes()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/colorcat/config.yaml)")
	flags.String("rules-user", "", "user color filters file (default is $HOME/.config/colorcat/colorfilters)")
	flags.String("rules-global", "", "global color filters file (default is "+filepath.Join(constants.GlobalDataDir, constants.RulesFileName)+")")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	_ = viper.BindPFlag("rules.user_file", flags.Lookup("rules-user"))
	_ = viper.BindPFlag("rules.global_file", flags.Lookup("rules-global"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Priority order for config files:
		// 1. ~/.config/colorcat/config.yaml
		// 2. ~/.config/colorcat.yaml
		viper.AddConfigPath(filepath.Join(home, constants.UserConfigDir))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
		if err := viper.ReadInConfig(); err != nil {
			viper.AddConfigPath(filepath.Join(home, ".config"))
			viper.SetConfigName("colorcat")
		}
	}

	viper.SetEnvPrefix("colorcat")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("rules.import_policy", "abort")

	if err := viper.ReadInConfig(); err == nil {
		logger.Debug("Using config file", "path", viper.ConfigFileUsed())
	}
}
