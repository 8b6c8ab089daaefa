package cli

import (
	"recipebox/internal/config"
	"recipebox/internal/formatting"
	"recipebox/pkg/logging"

	"github.com/spf13/cobra"
)

// CommandFlags holds the global flag values shared by every command.
type CommandFlags struct {
	// OutputFormat is one of formatting.ValidFormats.
	OutputFormat string
	NoHeaders    bool
	// Quiet suppresses progress indicators and non-essential output.
	Quiet      bool
	Debug      bool
	ConfigPath string
	// LogFormat selects the log handler (text, json).
	LogFormat string
	// LogLevelName is overridden by Debug.
	LogLevelName string
}

// RegisterCommonFlags registers the global flags on cmd as persistent flags:
//   - --output/-o: table, wide, json or yaml
//   - --no-headers: suppress table headers
//   - --quiet/-q: suppress non-essential output
//   - --debug: debug logging
//   - --log-level: debug, info, warn or error
//   - --log-format: text or json log lines
//   - --config-path: configuration directory
func RegisterCommonFlags(cmd *cobra.Command, flags *CommandFlags) {
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", string(formatting.FormatTable), "Output format (table, wide, json, yaml)")
	cmd.PersistentFlags().BoolVar(&flags.NoHeaders, "no-headers", false, "Suppress header row in table output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.LogLevelName, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", string(logging.FormatText), "Log format (text, json)")
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory")
}

// LogLevel returns the level selected by --log-level, or debug when
// --debug is set.
func (f *CommandFlags) LogLevel() (logging.LogLevel, error) {
	if f.Debug {
		return logging.LevelDebug, nil
	}
	return logging.ParseLevel(f.LogLevelName)
}

// FormatterOptions converts the output flags, validating the format.
func (f *CommandFlags) FormatterOptions() (formatting.Options, error) {
	if err := formatting.ValidateFormat(f.OutputFormat); err != nil {
		return formatting.Options{}, err
	}
	return formatting.Options{
		Format:    formatting.OutputFormat(f.OutputFormat),
		NoHeaders: f.NoHeaders,
	}, nil
}
