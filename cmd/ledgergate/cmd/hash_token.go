package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ledger-Gate/ledgergate/internal/domain/identity"
)

var useArgon2id bool

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Generate a hash for a session token",
	Long: `Generate a hash of a session token for use in config.

The default output format is "sha256:<hex>", usable directly in the
auth.sessions.token_hash field. With --argon2id the output is the
Argon2id PHC string, which resists brute force on the stored hash at
the cost of slower verification.

Example:
  ledgergate hash-token "my-session-token"
  # Output: sha256:7d5e8c...

Security note: the token will appear in shell history.
Consider using an environment variable:
  ledgergate hash-token "$MY_TOKEN"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := args[0]
		if useArgon2id {
			hash, err := identity.HashTokenArgon2id(token)
			if err != nil {
				return fmt.Errorf("hash token: %w", err)
			}
			fmt.Println(hash)
			return nil
		}
		fmt.Println("sha256:" + identity.HashToken(token))
		return nil
	},
}

func init() {
	hashTokenCmd.Flags().BoolVar(&useArgon2id, "argon2id", false, "Use Argon2id instead of SHA-256")
	rootCmd.AddCommand(hashTokenCmd)
}
