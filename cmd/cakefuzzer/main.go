// Package main is the entry point for the CakeFuzzer CLI
package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zigrin-security/cakefuzzer/internal/logging"
	"github.com/zigrin-security/cakefuzzer/pkg/types"
)

var (
	version = "1.0.0"
	cfgFile string
	config  *types.Config
	logger  *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cakefuzzer",
	Short: "CakeFuzzer - request parameter fuzzing engine",
	Long: `CakeFuzzer substitutes attack payloads into the inputs a web application
reads (query and form parameters, cookies, headers and URL path segments),
deciding on every access whether the application sees its original value or
a payload. Decisions stay fixed for the rest of an execution, and every
injected payload carries a unique GUID so its effects can be traced.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("no-color"); v {
			color.NoColor = true
			config.Output.Color = false
		}
		if v, _ := cmd.Flags().GetString("log-level"); v != "" {
			config.Logging.Level = v
		}
		if v, _ := cmd.Flags().GetString("log-format"); v != "" {
			config.Logging.Format = v
		}
		logger = logging.New(logging.Config{
			Level:  logging.ParseLevel(config.Logging.Level),
			Format: logging.ParseFormat(config.Logging.Format),
		})
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify CakeFuzzer configuration settings`,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		viper.Set(args[0], args[1])
		if err := types.ValidateConfig(currentConfig()); err != nil {
			return err
		}
		if err := viper.WriteConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
			return viper.SafeWriteConfig()
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(viper.Get(args[0]))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := viper.AllSettings()
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s: %v\n", k, settings[k])
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cakefuzzer.yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(payloadsCmd)
	rootCmd.AddCommand(configCmd)
	payloadsCmd.AddCommand(payloadsSuggestCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configShowCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".cakefuzzer")
		viper.SetConfigType("yaml")
	}

	setDefaults(types.DefaultConfig())

	viper.SetEnvPrefix("CAKEFUZZER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			printWarning("Failed to read config %s: %v", cfgFile, err)
		}
	}

	config = currentConfig()
}

// setDefaults registers every key so that environment variables and
// config show see them
func setDefaults(d *types.Config) {
	viper.SetDefault("provider.name", d.Provider.Name)
	viper.SetDefault("provider.api_key", d.Provider.APIKey)
	viper.SetDefault("provider.base_url", d.Provider.BaseURL)
	viper.SetDefault("provider.model", d.Provider.Model)
	viper.SetDefault("provider.max_tokens", d.Provider.MaxTokens)
	viper.SetDefault("provider.temperature", d.Provider.Temperature)

	viper.SetDefault("execution.probability", d.Execution.Probability)
	viper.SetDefault("execution.path_probability", d.Execution.PathProbability)
	viper.SetDefault("execution.payload_guid_phrase", d.Execution.GUIDPhrase)

	viper.SetDefault("run.iterations", d.Run.Iterations)
	viper.SetDefault("run.concurrency", d.Run.Concurrency)
	viper.SetDefault("run.rate_limit", d.Run.RateLimit)
	viper.SetDefault("run.timeout", d.Run.Timeout)
	viper.SetDefault("run.scenarios", d.Run.Scenarios)

	viper.SetDefault("output.format", d.Output.Format)
	viper.SetDefault("output.file", d.Output.File)
	viper.SetDefault("output.access_log", d.Output.AccessLog)
	viper.SetDefault("output.verbose", d.Output.Verbose)
	viper.SetDefault("output.color", d.Output.Color)

	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)
}

func currentConfig() *types.Config {
	c := types.DefaultConfig()
	if err := viper.Unmarshal(c); err != nil {
		printWarning("Invalid configuration, using defaults: %v", err)
		return types.DefaultConfig()
	}
	return c
}

// Printing functions

func printBanner() {
	banner := `
   ______      __        ______
  / ____/___ _/ /_____  / ____/_  __________  ___  _____
 / /   / __ ` + "`" + `/ //_/ _ \/ /_  / / / /_  /_  / / _ \/ ___/
/ /___/ /_/ / ,< /  __/ __/ / /_/ / / /_/ /_/  __/ /
\____/\__,_/_/|_|\___/_/    \__,_/ /___/___/\___/_/
Request Parameter Fuzzing Engine v%s
`
	fmt.Fprintf(os.Stderr, banner, version)
	fmt.Fprintln(os.Stderr)
}

func printInfo(format string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(os.Stderr, "[*] "+format+"\n", args...)
}

func printSuccess(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(os.Stderr, "[+] "+format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(os.Stderr, "[!] "+format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, "[-] "+format+"\n", args...)
}

func printProgress(current, total int) {
	pct := float64(current) / float64(total) * 100
	fmt.Fprintf(os.Stderr, "\r[*] Progress: %d/%d (%.1f%%)", current, total, pct)
}

func printSummary(result *types.RunResult) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "="+strings.Repeat("=", 50))
	fmt.Fprintln(os.Stderr, "RUN SUMMARY")
	fmt.Fprintln(os.Stderr, "="+strings.Repeat("=", 50))
	fmt.Fprintf(os.Stderr, "Run:         %s\n", result.RunID)
	fmt.Fprintf(os.Stderr, "Duration:    %s\n", result.Duration)
	fmt.Fprintf(os.Stderr, "Executions:  %d\n", result.Summary.TotalExecutions)
	fmt.Fprintf(os.Stderr, "Injected:    %d values\n", result.Summary.InjectedValues)
	fmt.Fprintf(os.Stderr, "GUIDs:       %d\n", result.Summary.PayloadGUIDs)
	if result.Summary.FailedExecutions > 0 {
		color.New(color.FgRed).Fprintf(os.Stderr, "Failed:      %d\n", result.Summary.FailedExecutions)
	}
	fmt.Fprintln(os.Stderr, "="+strings.Repeat("=", 50))
}
