package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd is the command run by main.
var rootCmd = newRootCmd()

// newRootCmd builds the varcalc command tree with fresh flag state.
func newRootCmd() *cobra.Command {
	var opts evalOptions
	cmd := &cobra.Command{
		Use:   "varcalc [flags] [expr ...]",
		Short: "Evaluate arithmetic expressions with variables",
		Long: `varcalc evaluates arithmetic expressions over 64-bit floats.

Each argument is evaluated as a separate expression. With no arguments,
expressions are read from --in or standard input: the whole input is one
expression unless --lines is given. When standard input is a terminal,
varcalc prompts for one expression per line.

Variables come from --vars files and --given definitions. PI and E are
always the mathematical constants.`,
		Example: `
  varcalc '1 + 2 * 3'
  varcalc --given r=2 '2 * PI * r'
  varcalc --vars vars.yaml --lines --in exprs.txt
  varcalc --output json 'x!' --given x=5`,
		Version:      getVersion(),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, args, &opts)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.varcalc/config.yaml)")
	cmd.PersistentFlags().String("log-level", "disabled", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("output", "text", "output format (text, json, yaml)")

	cmd.Flags().StringVar(&opts.in, "in", "", "input file, - for stdin (default stdin if no args given)")
	cmd.Flags().BoolP("lines", "n", false, "treat each input line as a separate expression")
	cmd.Flags().StringArrayVar(&opts.given, "given", nil, "name=value variable definition; value may be an expression (repeatable)")
	cmd.Flags().StringArrayVar(&opts.varsFiles, "vars", nil, "YAML or JSON file mapping variable names to numbers (repeatable)")
	cmd.Flags().String("fmt", "%g", "result formatting verb")
	cmd.Flags().Bool("echo", false, "print the parse tree of each expression")

	// Bind flags to viper
	_ = viper.BindPFlag("log-level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("output", cmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("fmt", cmd.Flags().Lookup("fmt"))
	_ = viper.BindPFlag("echo", cmd.Flags().Lookup("echo"))
	_ = viper.BindPFlag("lines", cmd.Flags().Lookup("lines"))

	cmd.AddCommand(newFuncsCmd(), newVersionCmd())
	return cmd
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.varcalc")
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("VARCALC")
	viper.AutomaticEnv()

	// A missing config file is fine.
	_ = viper.ReadInConfig()
}

// initLogging configures the global logger
func initLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch viper.GetString("log-level") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}

	if viper.GetString("output") == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if f := viper.ConfigFileUsed(); f != "" {
		log.Debug().Str("file", f).Msg("using config file")
	}
}

// getVersion returns the version string shown by --version.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, go: %s)", Version, Commit, Date, GoVersion)
}
