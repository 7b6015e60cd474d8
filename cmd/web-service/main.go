// Package main runs the web service: session-aware role dashboards for the
// marketing workspace, backed by PostgreSQL or SQLite.
//
//	web-service serve   --config ./config.yaml
//	web-service migrate --database-url postgres://...
package main

import (
	"fmt"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/r2r72/x-mkt-v1/internal/config"
)

const (
	addrFlag        = "addr"
	databaseURLFlag = "database-url"
	driverFlag      = "database-driver"
	logLevelFlag    = "log-level"
)

// newCommonFlags returns the flags shared by every subcommand. Each command
// gets its own map because a cobraflags.Flag binds to the last command it was
// registered on.
func newCommonFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		addrFlag: &cobraflags.StringFlag{
			Name:  addrFlag,
			Value: "",
			Usage: "HTTP listen address (overrides addr)",
		},
		databaseURLFlag: &cobraflags.StringFlag{
			Name:  databaseURLFlag,
			Value: "",
			Usage: "Database DSN (overrides database.url / DATABASE_URL)",
		},
		driverFlag: &cobraflags.StringFlag{
			Name:  driverFlag,
			Value: "",
			Usage: "Database driver: postgres or sqlite",
		},
		logLevelFlag: &cobraflags.StringFlag{
			Name:  logLevelFlag,
			Value: "",
			Usage: "Log level: debug, info, warn, error",
		},
	}
}

// flagKeys maps flags onto config keys.
var flagKeys = map[string]string{
	addrFlag:        "addr",
	databaseURLFlag: "database.url",
	driverFlag:      "database.driver",
	logLevelFlag:    "log.level",
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "web-service",
		Short:         "Marketing workspace web service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	return root
}

// loadConfig reads file and env config, then applies flags set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := viper.New()
	for name, key := range flagKeys {
		if !cmd.Flags().Changed(name) {
			continue
		}
		val, err := cmd.Flags().GetString(name)
		if err != nil {
			return config.Config{}, fmt.Errorf("flag %s: %w", name, err)
		}
		v.Set(key, val)
	}
	return config.Load(v)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
