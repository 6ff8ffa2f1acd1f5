// Package globals provides the flags shared by every CLI command.
package globals

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agentstation/feedsync/internal/config"
)

// Flags holds global common flags across all commands.
type Flags struct {
	ConfigFile string
	Format     string
	LogLevel   string
	Quiet      bool
	Verbose    bool
	NoColor    bool
}

// AddFlags adds common flags to the root command.
func AddFlags(cmd *cobra.Command) *Flags {
	flags := &Flags{}
	pf := cmd.PersistentFlags()

	pf.StringVar(&flags.ConfigFile, "config", "",
		"config file (default is $HOME/.feedsync.yaml)")
	pf.StringVarP(&flags.Format, "format", "o", "",
		"output format: table, wide, json, yaml")
	pf.StringVar(&flags.Format, "output", "", "")
	_ = pf.MarkHidden("output")
	pf.StringVar(&flags.LogLevel, "log-level", "",
		"log level: trace, debug, info, warn, error (overrides -v/-q)")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false,
		"minimal output (shortcut for --log-level=warn)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false,
		"verbose output (shortcut for --log-level=debug)")
	pf.BoolVar(&flags.NoColor, "no-color", false,
		"disable colored output")

	return flags
}

// AddFeedFlags adds the connection flags of commands that talk to the feed
// API. They are bound to the matching config keys so flags win over the
// environment and the config file.
func AddFeedFlags(cmd *cobra.Command, v *viper.Viper) {
	pf := cmd.PersistentFlags()
	pf.String("base-url", "", "feed API base URL (default "+`"http://localhost:3000"`+")")
	pf.String("app-mode", "", "app mode: valyu or self-hosted")
	pf.String("access-token", "", "session access token")
	pf.StringSlice("queries", nil, "feed queries (comma-separated)")
	pf.Duration("http-timeout", 0, "timeout for non-streaming requests")

	bind(v, pf, config.KeyBaseURL, "base-url")
	bind(v, pf, config.KeyAppMode, "app-mode")
	bind(v, pf, config.KeyAccessToken, "access-token")
	bind(v, pf, config.KeyQueries, "queries")
	bind(v, pf, config.KeyHTTPTimeout, "http-timeout")
}

// Bind binds a command flag to a config key.
func Bind(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	bind(v, cmd.Flags(), key, flag)
}

func bind(v *viper.Viper, fs *pflag.FlagSet, key, flag string) {
	if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
		panic("programming error: failed to bind flag " + flag + ": " + err.Error())
	}
}
