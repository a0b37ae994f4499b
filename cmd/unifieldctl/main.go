// Command unifieldctl manages UniField tables from the terminal through the
// gateway service, the same way the dashboard screens do.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"unifield-backend/internal/config"
	"unifield-backend/internal/gateway"
	"unifield-backend/internal/models"
)

var (
	// configFile is set by the --config flag.
	configFile string
	flagJSON   bool
	verbose    bool

	cfg      *config.Config
	client   *gateway.Client
	registry = models.DefaultRegistry()

	// gw is what every command reads and writes through. It is the HTTP
	// client in normal runs.
	gw gateway.Gateway
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "unifieldctl",
	Short: "unifieldctl manages UniField retail data",
	Long: `unifieldctl lists, creates, edits and deletes UniField records
through the gateway service, follows live order changes and downloads
invoices and backups.`,
	SilenceUsage:      true,
	PersistentPreRunE: initClient,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "configs/config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print JSON instead of tables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show log output")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(invoicePDFCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(entitiesCmd)
}

// initClient loads config and builds the gateway client. A saved token from
// a previous login is used when the config carries none.
func initClient(cmd *cobra.Command, args []string) error {
	if !verbose {
		log.SetOutput(io.Discard)
	}

	var err error
	cfg, err = config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	token := cfg.Client.Token
	if token == "" {
		token, err = readToken()
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
	}
	client = gateway.NewClient(cfg.Client.BaseURL, token)
	if gw == nil {
		gw = client
	}
	return nil
}
