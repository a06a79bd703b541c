package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/verity/internal/auth"
	"github.com/ppiankov/verity/internal/pipeline"
)

// keysCmd represents the keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Administer the access key pool",
	Long: `Administer the pool of pre-generated access keys.

These commands operate on the configured key store. With the default
in-memory store the pool lives only for the lifetime of the command,
so use auth.store=postgres for a persistent pool.`,
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the key pool if the store is empty",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeys(func(ctx context.Context, m *auth.Manager) error {
			keys, err := m.Store().List(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Key pool ready: %d keys\n", len(keys))
			return nil
		})
	},
}

var keysAssignCmd = &cobra.Command{
	Use:   "assign <owner>",
	Short: "Assign an available key to an owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeys(func(ctx context.Context, m *auth.Manager) error {
			key, err := m.Assign(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(key.Value)
			fmt.Fprintf(os.Stderr, "✓ Assigned to %s\n", key.Owner)
			return nil
		})
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <key>",
	Short: "Revoke a key permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeys(func(ctx context.Context, m *auth.Manager) error {
			key, err := m.Revoke(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Revoked key of %s\n", key.Owner)
			return nil
		})
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys and their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeys(func(ctx context.Context, m *auth.Manager) error {
			keys, err := m.Store().List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSTATUS\tOWNER\tASSIGNED")
			for _, k := range keys {
				assigned := "-"
				if k.AssignedAt != nil {
					assigned = k.AssignedAt.Format(time.RFC3339)
				}
				owner := k.Owner
				if owner == "" {
					owner = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k.Value, k.Status, owner, assigned)
			}
			return tw.Flush()
		})
	},
}

// withKeys opens the key store, seeds it and runs fn
func withKeys(fn func(ctx context.Context, m *auth.Manager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	manager, err := pipeline.NewAuthManager(ctx, cfg.Auth, newLogger(false))
	if err != nil {
		return err
	}
	if closer, ok := manager.Store().(interface{ Close() }); ok {
		defer closer.Close()
	}
	if cfg.Auth.Store == "" || cfg.Auth.Store == "memory" {
		fmt.Fprintf(os.Stderr, "⚠️  Using the in-memory key store; changes are not persisted\n")
	}
	return fn(ctx, manager)
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysInitCmd, keysAssignCmd, keysRevokeCmd, keysListCmd)
}
