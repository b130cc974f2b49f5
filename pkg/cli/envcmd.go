package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/apiflow/pkg/env"
)

// NewEnvCommand creates the env command group for managing stored
// environments.
func NewEnvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage stored environments",
	}

	cmd.AddCommand(newEnvListCommand())
	cmd.AddCommand(newEnvShowCommand())
	cmd.AddCommand(newEnvSetCommand())
	cmd.AddCommand(newEnvUnsetCommand())
	cmd.AddCommand(newEnvDeleteCommand())

	return cmd
}

func newEnvListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			environments, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range environments {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d variable(s)\n", e.ID, e.Name, len(e.Variables))
			}
			return nil
		},
	}
}

func newEnvShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an environment's variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			e, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, v := range e.Variables {
				state := ""
				if !v.Enabled {
					state = "\t(disabled)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s%s\n", v.Key, v.Value, state)
			}
			return nil
		},
	}
}

func newEnvSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <key> <value>",
		Short: "Set a variable, creating the environment if needed",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			id, key, value := args[0], args[1], args[2]
			e, err := store.Load(cmd.Context(), id)
			if err != nil {
				e = &env.Environment{ID: id, Name: id}
				if err := store.Save(cmd.Context(), e); err != nil {
					return err
				}
			}

			diff := env.NewDiff()
			diff.RecordSet(key, value)
			_, err = store.ApplyDiff(cmd.Context(), id, diff)
			return err
		},
	}
}

func newEnvUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <id> <key>",
		Short: "Remove a variable from an environment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			diff := env.NewDiff()
			diff.RecordUnset(args[1])
			_, err = store.ApplyDiff(cmd.Context(), args[0], diff)
			return err
		},
	}
}

func newEnvDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return store.Delete(cmd.Context(), args[0])
		},
	}
}
