package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"unifield-backend/internal/models"
	"unifield-backend/internal/settings"
)

var settingsSearch string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the settings screen",
	Long: `Settings shows the system configuration, user roles and integrations.
These are held in memory only: every run starts from the defaults, and
changes made with "settings set" last for that run.`,
	Args: cobra.NoArgs,
	RunE: runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Validate and apply a system setting",
	Long: `Set changes one system setting and prints the result. Keys:
maintenance_mode, session_timeout, email_notifications, sms_notifications.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsListCmd = &cobra.Command{
	Use:       "list <roles|integrations>",
	Short:     "List roles or integrations",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{models.EntityRoles, models.EntityIntegrations},
	RunE:      runSettingsList,
}

func init() {
	settingsListCmd.Flags().StringVarP(&settingsSearch, "search", "s", "", "filter rows by text")
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsListCmd)
}

func openSettings(cmd *cobra.Command) (*settings.Settings, error) {
	return settings.New(cmd.Context(), registry)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	s, err := openSettings(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"system":       s.System(),
			"roles":        s.Roles.Rows(),
			"integrations": s.Integrations.Rows(),
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "System")
	if err := printSystem(cmd, s.System()); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nRoles")
	if err := printRows(out, s.Roles.Entity(), s.Roles.Rows()); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nIntegrations")
	return printRows(out, s.Integrations.Entity(), s.Integrations.Rows())
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	s, err := openSettings(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Set(args[0], args[1]); err != nil {
		return err
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), s.System())
	}
	return printSystem(cmd, s.System())
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	s, err := openSettings(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	page, err := s.Page(args[0])
	if err != nil {
		return err
	}
	page.SetQuery(settingsSearch)
	return printRows(cmd.OutOrStdout(), page.Entity(), page.Filtered())
}

func printSystem(cmd *cobra.Command, sys models.SystemSettings) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "maintenance_mode:\t%t\n", sys.MaintenanceMode)
	fmt.Fprintf(tw, "session_timeout:\t%d min\n", sys.SessionTimeout)
	fmt.Fprintf(tw, "email_notifications:\t%t\n", sys.EmailNotifications)
	fmt.Fprintf(tw, "sms_notifications:\t%t\n", sys.SMSNotifications)
	return tw.Flush()
}
