/*
main.go - Application entry point

PURPOSE:
  Command-line front end of the court reservation engine. Loads the
  layered configuration and dispatches to a subcommand.

COMMANDS:
  serve             Run the HTTP API (default when no command is given)
  migrate           Create or upgrade the database schema and exit
  member create     Register a member from the command line
  token issue       Print a bearer token for an existing member

CONFIGURATION (lowest to highest precedence):
  1. Built-in defaults (config.Default)
  2. TOML file given with --config
  3. COURT_* environment variables (and ./.env)
  4. Command-line flags

EXAMPLES:
  # Serve with a file database and demo data
  COURT_JWT_SECRET=change-me-please-now ./server serve --scenario club-day

  # In-memory database on a different port
  ./server serve --db=":memory:" --addr=":3000"

  # Create the first admin
  ./server member create --email admin@club.test --first Ada --last Admin \
      --role admin --password s3cret

SEE ALSO:
  - config/config.go: Settings and their environment names
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/warp/court-engine/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Court reservation and ledger engine",
	Long: `Books tennis court slots against prepaid member balances.
Every booking charges a fixed fee from the member's balance in the same
unit of work that records the reservation; admins top up balances and
cancel reservations.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
}

// loadConfig reads defaults, the config file and the environment. A .env
// file in the working directory, when present, feeds the environment.
func loadConfig() (config.Config, error) {
	_ = godotenv.Load(".env")
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
