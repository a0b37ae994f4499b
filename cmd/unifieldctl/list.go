package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"unifield-backend/internal/crud"
	"unifield-backend/internal/models"
)

var (
	listSearch string
	listPage   int
	listSize   int
)

var listCmd = &cobra.Command{
	Use:   "list <entity>",
	Short: "List the records of an entity",
	Long: `List fetches an entity table the way its dashboard screen does and
prints the rows matching --search. Search is a case-insensitive substring
match over the entity's search fields.

Paged entities (orders) print one page at a time; use --page to move.

Example:
  unifieldctl list retailers --search lagos
  unifieldctl list orders --page 2`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the entity names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), registry.Remote())
		}
		for _, e := range registry.Remote() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-18s search: %s\n", e.Name, strings.Join(e.SearchFields, ", "))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "filter rows by text")
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number for paged entities")
	listCmd.Flags().IntVar(&listSize, "size", 0, "page size (0 keeps the entity default)")
}

func runList(cmd *cobra.Command, args []string) error {
	entity, err := remoteEntity(args[0])
	if err != nil {
		return err
	}

	page := crud.NewPage(gw, entity)
	defer page.Close()

	size := entity.PageSize
	if listSize > 0 {
		size = listSize
	}
	page.Store().SetPage(listPage, size)
	if err := page.Load(cmd.Context()); err != nil {
		return describeError(err)
	}
	page.SetQuery(listSearch)

	rows := page.Filtered()
	if err := printRows(cmd.OutOrStdout(), entity, rows); err != nil {
		return err
	}
	if !flagJSON {
		printFooter(cmd, page, entity, len(rows))
	}
	return nil
}

func printFooter(cmd *cobra.Command, page *crud.Page, entity models.Entity, shown int) {
	store := page.Store()
	number, size := store.Page()
	if size > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d (%d %s)\n", number, store.Pages(), store.Total(), entity.Name)
		return
	}
	if page.Query() != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d %s match %q\n", shown, store.Len(), entity.Name, page.Query())
	}
}
