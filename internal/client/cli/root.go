// Package cli implements the burnnote command line client: it composes and
// views self-destructing notes, doing all encryption locally so the server
// only ever receives ciphertext.
package cli

import (
	"github.com/spf13/cobra"
)

var serverAddr string

var rootCmd = &cobra.Command{
	Use:   "burnnote",
	Short: "Share self-destructing encrypted notes",
	Long: `burnnote encrypts a note on your machine and uploads only the ciphertext.
The share token printed by "create" contains the note id and the decryption
key separated by '#'; the key part never reaches the server. A note can be
read exactly once.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "burnnote server base URL")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
