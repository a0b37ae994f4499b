package main

import (
	"fmt"
	"net/http"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"unifield-backend/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Take a snapshot of every table (admin)",
	Long: `Backup asks the service to write a JSON snapshot of every entity table
to the configured bucket. Use "backup list" to see earlier snapshots.`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

func init() {
	backupCmd.AddCommand(backupListCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	var snap backup.Snapshot
	if err := client.Call(cmd.Context(), http.MethodPost, "/api/admin/backup", nil, &snap); err != nil {
		return describeError(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), snap)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Snapshot %s (%d bytes)\n", snap.Key, snap.Bytes)
	tables := make([]string, 0, len(snap.Rows))
	for t := range snap.Rows {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, t := range tables {
		fmt.Fprintf(tw, "  %s\t%d rows\n", t, snap.Rows[t])
	}
	return tw.Flush()
}

func runBackupList(cmd *cobra.Command, args []string) error {
	var resp struct {
		Configured bool     `json:"configured"`
		Snapshots  []string `json:"snapshots"`
	}
	if err := client.Call(cmd.Context(), http.MethodGet, "/api/admin/backup", nil, &resp); err != nil {
		return describeError(err)
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	if !resp.Configured {
		fmt.Fprintln(cmd.OutOrStdout(), "Backup storage is not configured")
		return nil
	}
	if len(resp.Snapshots) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No snapshots yet")
		return nil
	}
	for _, key := range resp.Snapshots {
		fmt.Fprintln(cmd.OutOrStdout(), key)
	}
	return nil
}
