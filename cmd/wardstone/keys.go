// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/wardstone/internal/db"
	"github.com/toeirei/wardstone/internal/i18n"
	"github.com/toeirei/wardstone/internal/sshkey"
)

// keysCmd groups the tracked-key inventory subcommands.
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the tracked credential inventory",
	Long: `Adds, lists and removes tracked public keys. The inventory is what the
periodic security audit scans for expired, weak and stale credentials.`,
}

// keysAddCmd adds one public key to the inventory.
var keysAddCmd = &cobra.Command{
	Use:   "add <identity> <public-key>",
	Short: "Add a tracked key",
	Long: `Adds a public key to the inventory under the given identity. The key is
an authorized_keys style line ("algorithm base64-data [comment]"); any
comment is ignored. Use --expires to record an expiry date.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		identity := args[0]

		algorithm, keyData, _, err := sshkey.Parse(args[1])
		if err != nil {
			log.Fatalf("invalid public key: %v", err)
		}

		var expiresAt *time.Time
		if expires, _ := cmd.Flags().GetString("expires"); expires != "" {
			t, err := time.Parse("2006-01-02", expires)
			if err != nil {
				log.Fatalf("invalid --expires date %q: expected YYYY-MM-DD", expires)
			}
			expiresAt = &t
		}

		id, err := db.AddTrackedKey(identity, algorithm, keyData, expiresAt)
		if err != nil {
			if errors.Is(err, db.ErrDuplicate) {
				log.Fatalf("a tracked key with identity %q already exists", identity)
			}
			log.Fatalf("%v", err)
		}
		fmt.Println(i18n.T("keys.added", identity, id))
	},
}

// keysListCmd prints the inventory.
var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked keys",
	Run: func(cmd *cobra.Command, args []string) {
		keys, err := db.GetAllTrackedKeys()
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(renderKeys(keys))
	},
}

// keysRemoveCmd removes one key from the inventory by identity.
var keysRemoveCmd = &cobra.Command{
	Use:   "remove <identity>",
	Short: "Remove a tracked key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		identity := args[0]
		if err := db.DeleteTrackedKey(identity); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				log.Fatalf("no tracked key with identity %q", identity)
			}
			log.Fatalf("%v", err)
		}
		fmt.Println(i18n.T("keys.removed", identity))
	},
}

func init() {
	keysAddCmd.Flags().String("expires", "", "Expiry date of the key (YYYY-MM-DD)")
	keysCmd.AddCommand(keysAddCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysRemoveCmd)
}
