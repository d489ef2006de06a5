package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
}

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	cmd.PersistentFlags().StringVar(
		&flags.ConfigFile,
		"config",
		"",
		"config file (default is ./config.yaml or $HOME/.config/dirmirror/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&flags.Verbose,
		"verbose",
		"v",
		false,
		"log debug records",
	)
	cmd.PersistentFlags().BoolVarP(
		&flags.Quiet,
		"quiet",
		"q",
		false,
		"do not mirror log records to stdout",
	)
}

// mirrorFlagKeys maps each mirror flag to the configuration key it
// overrides
var mirrorFlagKeys = map[string]string{
	"source":           "sync.source",
	"replica":          "sync.replica",
	"interval":         "sync.interval",
	"prune-empty-dirs": "sync.prune_empty_dirs",
	"log":              "log.file",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"parallel":         "performance.max_workers",
	"bandwidth":        "performance.bandwidth",
	"exclude":          "exclude",
}

// addMirrorFlags declares the flags shared by the commands that run cycles.
// Defaults live in the config package, so flags only count when set.
func addMirrorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("source", "s", "", "source directory path")
	f.StringP("replica", "r", "", "replica directory path")
	f.IntP("interval", "i", 0, "seconds to wait after a cycle before the next one")
	f.StringP("log", "l", "", "event log file path")
	f.String("log-format", "", "log file format: text, json")
	f.String("log-level", "", "log level: debug, info, warn, error")
	f.IntP("parallel", "p", 0, "number of parallel workers (default: 4)")
	f.StringP("bandwidth", "b", "", "bandwidth limit (e.g. \"10MB\", \"1GiB\")")
	f.Bool("prune-empty-dirs", false, "remove empty directories from the replica")
	f.StringSlice("exclude", []string{}, "glob patterns to exclude (e.g. \"*.tmp\", \".git/\")")
}

// bindMirrorFlags makes every mirror flag override its configuration key
func bindMirrorFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range mirrorFlagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}
