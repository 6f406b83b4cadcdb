/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/josephgoksu/obbywatch/internal/config"
	"github.com/josephgoksu/obbywatch/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is the application version.
// Set via ldflags at build time: -ldflags "-X github.com/josephgoksu/obbywatch/cmd.version=1.0.0"
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "obbywatch",
	Short: "obbywatch - a living note over your notes and code",
	Long: `obbywatch watches a project tree, versions every content change,
summarizes it on a schedule with an LLM, and keeps a living note you
and an in-terminal agent can both read and search.`,
	PersistentPreRunE: initProject,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

// Execute adds all child commands to the root command and runs it. It is
// called by main.main() exactly once.
func Execute() {
	initCrashHandler()
	defer logger.HandlePanic()

	rootCmd.SuggestionsMinimumDistance = 2

	if err := rootCmd.Execute(); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "unknown command") {
			parts := strings.Split(errStr, "\"")
			if len(parts) >= 2 {
				if hint := getCommandHint(parts[1]); hint != "" {
					fmt.Fprintf(os.Stderr, "\n%s\n", hint)
				}
			}
		}
		os.Exit(1)
	}
}

// initCrashHandler sets up the crash logging context ahead of any
// subcommand so a panic anywhere still lands a usable log.
func initCrashHandler() {
	logger.SetVersion(version)
	if len(os.Args) > 1 {
		logger.SetCommand(strings.Join(os.Args[1:], " "))
	}
}

// initProject detects the project root (looking for .obbywatch, then
// .git, falling back to the working directory) and makes it available to
// every subcommand via internal/config. Detection is the same for every
// command; none of them requires an existing .obbywatch.
func initProject(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	ctx, err := config.DetectAndSetProjectContext()
	if err != nil {
		return fmt.Errorf("detect project root: %w", err)
	}

	logger.SetBasePath(filepath.Dir(config.ResolveLayout(ctx.RootPath).DatabasePath))

	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return nil
}

func getCommandHint(cmd string) string {
	hints := map[string]string{
		"start":  "Hint: to start watching, use: obbywatch serve",
		"run":    "Hint: to start watching, use: obbywatch serve",
		"watch":  "Hint: to start watching, use: obbywatch serve",
		"search": "Hint: to search the living note, use: obbywatch status --search \"<query>\"",
	}
	if hint, ok := hints[cmd]; ok {
		return hint
	}
	return ""
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("config", "", "Config file (default .obbywatch/config.yaml)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".obbywatch")
	}

	viper.SetEnvPrefix("OBBYWATCH")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// GetVersion returns the application version.
func GetVersion() string {
	return version
}
