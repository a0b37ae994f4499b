package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"unifield-backend/internal/crud"
	"unifield-backend/internal/models"
	"unifield-backend/internal/timeutil"
)

var watchCmd = &cobra.Command{
	Use:   "watch [entity]",
	Short: "Follow live changes to a table",
	Long: `Watch prints the table, then refetches and prints it again after every
insert, update or delete anyone makes. It defaults to orders and stops on
Ctrl-C or when the service closes the change feed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

// errFeedClosed is returned when the service ends the change feed.
var errFeedClosed = errors.New("change feed closed by server")

func runWatch(cmd *cobra.Command, args []string) error {
	name := models.EntityOrders
	if len(args) == 1 {
		name = args[0]
	}
	entity, err := remoteEntity(name)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store := crud.NewStore(gw, entity)
	var mu sync.Mutex
	render := func(reason string) error {
		mu.Lock()
		defer mu.Unlock()
		if !flagJSON {
			fmt.Fprintf(cmd.OutOrStdout(), "\n[%s] %s\n", timeutil.Now().Format("15:04:05"), reason)
		}
		return printRows(cmd.OutOrStdout(), entity, store.Rows())
	}

	if err := store.Load(ctx); err != nil {
		return describeError(err)
	}
	if err := render("loaded " + entity.Name); err != nil {
		return err
	}

	listener := crud.NewListener(gw, entity.Table, func(ctx context.Context) error {
		if err := store.Load(ctx); err != nil {
			return err
		}
		return render(entity.Name + " changed")
	})
	if err := listener.Subscribe(ctx); err != nil {
		return describeError(err)
	}
	defer listener.Unsubscribe()

	select {
	case <-ctx.Done():
		return nil
	case <-listener.Done():
		if ctx.Err() != nil {
			return nil
		}
		return errFeedClosed
	}
}
