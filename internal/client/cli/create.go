package cli

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvoloshins/burnnote/internal/client/api"
	"github.com/dvoloshins/burnnote/internal/common"
	"github.com/dvoloshins/burnnote/internal/cryptox"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create [message]",
	Short: "Encrypt a message and upload it as a one-time note",
	Long: `Create a new self-destructing note. The message comes from the argument or,
when omitted, from stdin. A fresh random key is generated per note; the
printed share token is "<id>#<key>" and the key part must be passed along
out-of-band.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		expiresIn, _ := cmd.Flags().GetDuration("expires-in")
		attach, _ := cmd.Flags().GetString("attach")

		var message string
		if len(args) == 1 {
			message = args[0]
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			message = string(data)
		}
		if strings.TrimSpace(message) == "" {
			return fmt.Errorf("note message cannot be empty")
		}

		key := cryptox.GenerateKey()
		defer common.WipeByteArray(key)

		ciphertext, nonce, err := cryptox.Encrypt([]byte(message), key)
		if err != nil {
			return fmt.Errorf("encryption error: %w", err)
		}

		req := api.CreateNoteRequest{
			EncryptedContent: ciphertext,
			IV:               nonce,
		}

		if password != "" {
			req.PasswordHash = cryptox.HashPassword(password)
		}
		if expiresIn > 0 {
			expiresAt := time.Now().Add(expiresIn)
			req.ExpiresAt = &expiresAt
		}
		if attach != "" {
			ef, err := cryptox.EncryptFile(attach, key)
			if err != nil {
				return fmt.Errorf("attachment encryption error: %w", err)
			}
			req.FileName = ef.Name
			req.FileType = mime.TypeByExtension(filepath.Ext(ef.Name))
			req.EncryptedFile = ef.Ciphertext
			req.FileIV = ef.Nonce
		}

		client := api.New(serverAddr)
		id, err := client.CreateNote(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("upload error: %w", err)
		}

		token := id + "#" + cryptox.ExportKey(key)
		color.Green("Note created. It can be read exactly once.")
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	createCmd.Flags().String("password", "", "additionally protect the note with a password")
	createCmd.Flags().Duration("expires-in", 0, "expire the note after this duration (e.g. 24h)")
	createCmd.Flags().String("attach", "", "encrypt and attach a file")
	rootCmd.AddCommand(createCmd)
}
