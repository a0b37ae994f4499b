package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"unifield-backend/internal/crud"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <entity> <id>",
	Short: "Delete a record",
	Long:  `Delete removes a record after asking for confirmation. Pass --yes to skip the question.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "do not ask for confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	entity, err := remoteEntity(args[0])
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}

	if !deleteYes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Delete %s %d?", entity.Name, id)) {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
		return nil
	}

	page := crud.NewPage(gw, entity)
	defer page.Close()
	if err := page.Dispatcher().Delete(cmd.Context(), id); err != nil {
		return describeError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %d\n", entity.Name, id)
	return nil
}
