// Package cli provides the apiflow command line surface: running request
// fixtures through the script and assertion engine, and managing stored
// environments. The engine itself stays a library; everything here is the
// surrounding application.
package cli

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

// Version is the current version of apiflow.
const Version = "0.3.0"

// Config holds the global CLI configuration.
type Config struct {
	DBPath string
	Debug  bool
}

// GlobalConfig is the shared configuration instance.
var GlobalConfig = &Config{}

// NewRootCommand creates the root cobra command for apiflow.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apiflow",
		Short: "apiflow - scripted API request runner",
		Long: `apiflow runs API requests with pre/post scripts and declarative assertions.
Pre-request scripts can rewrite the outgoing request and stage environment
changes; post-response scripts and assertions check what came back. Scripts
run sandboxed with no filesystem, network or process access.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if GlobalConfig.Debug {
				log.SetOutput(os.Stderr)
				log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}

	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.DBPath, "db", "", "Environment database path (default: ~/.apiflow/apiflow.db)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewEnvCommand())

	return cmd
}
