package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/grove/backend/dynamo"
	"github.com/jacentio/grove/board"
	"github.com/jacentio/grove/store"
)

var createTables bool

func init() {
	initRootCmd.Flags().String("backend", "", "backend kind: memory, badger or dynamodb")
	initRootCmd.Flags().String("log-level", "", "log level: debug, info, warn or error")
	initRootCmd.Flags().String("root-id", "", "id of the root post (overrides root_id)")
	initRootCmd.Flags().BoolVar(&createTables, "create-tables", false, "create the DynamoDB tables first")
	rootCmd.AddCommand(initRootCmd)
}

var initRootCmd = &cobra.Command{
	Use:   "init-root [content]",
	Short: "Write the root post if it does not exist",
	Args:  cobra.MaximumNArgs(1),
	RunE:  initRoot,
}

func initRoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := setup(ctx, cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.close()

	if createTables {
		db, ok := e.backend.(*dynamo.Backend)
		if !ok {
			return fmt.Errorf("--create-tables needs the %s backend", "dynamodb")
		}
		client, err := dynamoClient(ctx, e.config.Backend.Dynamo)
		if err != nil {
			return err
		}
		if err := dynamo.CreateTables(ctx, client, db.Config()); err != nil {
			return err
		}
		e.logger.Info("tables created", "table", db.Config().Table, "rankTable", db.Config().RankTable)
	}

	content := e.config.RootContent
	if len(args) > 0 {
		content = args[0]
	}

	b := board.New(store.New(e.backend, e.config.StoreConfig(e.logger)), e.logger)
	id, err := b.EnsureRoot(ctx, e.config.RootID, content)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
