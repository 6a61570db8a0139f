package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Microck/bansho/internal/adapter/outbound/postgres"
	"github.com/Microck/bansho/internal/config"
	"github.com/Microck/bansho/internal/domain/auth"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
	Long: `Create, list, and revoke the API keys the proxy authenticates.

Keys are stored hashed in PostgreSQL; the plaintext is printed exactly
once, at creation.`,
}

var keysCreateRole string

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API key",
	RunE:  runKeysCreate,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all API keys",
	RunE:  runKeysList,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <api_key_id>",
	Short: "Revoke an API key",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return usageError{"Missing api_key_id"}
		}
		return nil
	},
	RunE: runKeysRevoke,
}

func init() {
	keysCreateCmd.Flags().StringVar(&keysCreateRole, "role", auth.DefaultRole, "Role for the new API key")
	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd)
	rootCmd.AddCommand(keysCmd)
}

// withKeyService loads settings, opens the database, ensures the
// schema, and hands the key service to fn. The pool closes when fn
// returns.
func withKeyService(ctx context.Context, fn func(ctx context.Context, keys *auth.APIKeyService) error) error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("Config error: %w", err)
	}
	pool, err := postgres.Connect(ctx, settings.PostgresDSN)
	if err != nil {
		return fmt.Errorf("Postgres error: %w", err)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("Schema error: %w", err)
	}
	return fn(ctx, auth.NewAPIKeyService(postgres.NewKeyStore(pool)))
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	return withKeyService(cmd.Context(), func(ctx context.Context, keys *auth.APIKeyService) error {
		id, plaintext, err := keys.Create(ctx, keysCreateRole)
		if err != nil {
			// Creation failures stay detail-free: the error could
			// reference key material.
			return errors.New("Failed to create API key.")
		}
		fmt.Printf("api_key_id: %s\n", id)
		fmt.Printf("api_key: %s\n", plaintext)
		return nil
	})
}

func runKeysList(cmd *cobra.Command, args []string) error {
	return withKeyService(cmd.Context(), func(ctx context.Context, keys *auth.APIKeyService) error {
		records, err := keys.List(ctx)
		if err != nil {
			return fmt.Errorf("Failed to list API keys: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No API keys found.")
			return nil
		}
		fmt.Println("api_key_id\trole\trevoked")
		for _, rec := range records {
			revoked := "no"
			if rec.Revoked {
				revoked = "yes"
			}
			fmt.Printf("%s\t%s\t%s\n", rec.ID, rec.Role, revoked)
		}
		return nil
	})
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	id := args[0]
	return withKeyService(cmd.Context(), func(ctx context.Context, keys *auth.APIKeyService) error {
		revoked, err := keys.Revoke(ctx, id)
		if err != nil {
			return fmt.Errorf("Failed to revoke API key: %w", err)
		}
		if !revoked {
			return fmt.Errorf("API key not found or already revoked: %s", id)
		}
		fmt.Printf("Revoked API key: %s\n", id)
		return nil
	})
}
