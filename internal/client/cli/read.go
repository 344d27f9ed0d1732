package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/dvoloshins/burnnote/internal/client/api"
	"github.com/dvoloshins/burnnote/internal/common"
	"github.com/dvoloshins/burnnote/internal/cryptox"
	"github.com/dvoloshins/burnnote/internal/filex"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var readCmd = &cobra.Command{
	Use:   "read <token>",
	Short: "Fetch, decrypt and destroy a one-time note",
	Long: `Read a note by its share token ("<id>#<key>"). The ciphertext is fetched
from the server and decrypted locally; after successful decryption the read
is confirmed and the server schedules permanent deletion.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		outPath, _ := cmd.Flags().GetString("out")

		id, key, err := splitShareToken(args[0])
		if err != nil {
			return err
		}
		defer common.WipeByteArray(key)

		client := api.New(serverAddr)

		var passwordHash string
		if password != "" {
			passwordHash = cryptox.HashPassword(password)
		}

		payload, err := client.FetchNote(cmd.Context(), id, passwordHash)
		if errors.Is(err, common.ErrUnauthorized) && password == "" {
			// the note is password protected; ask and retry once
			pw, perr := promptPassword("Password: ")
			if perr != nil {
				return perr
			}
			payload, err = client.FetchNote(cmd.Context(), id, cryptox.HashPassword(pw))
		}
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("this note has been deleted or does not exist")
		}
		if err != nil {
			return fmt.Errorf("fetch error: %w", err)
		}

		plaintext, err := cryptox.Decrypt(payload.EncryptedContent, payload.IV, key)
		if err != nil {
			return fmt.Errorf("decryption failed, the key may be wrong: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(plaintext))

		if len(payload.EncryptedFile) > 0 {
			name := outPath
			if name == "" {
				name = payload.FileName
			}
			fileData, err := cryptox.Decrypt(payload.EncryptedFile, payload.FileIV, key)
			if err != nil {
				return fmt.Errorf("attachment decryption failed: %w", err)
			}
			name, err = filex.EnsureParentDir(name)
			if err != nil {
				return fmt.Errorf("failed to prepare output path: %w", err)
			}
			if err := os.WriteFile(name, fileData, 0o600); err != nil {
				return fmt.Errorf("failed to write attachment: %w", err)
			}
			color.Cyan("Attachment saved to %s", name)
		}

		if err := client.ConfirmRead(cmd.Context(), id); err != nil {
			return fmt.Errorf("read confirmation error: %w", err)
		}
		color.Yellow("This note has been destroyed and cannot be accessed again.")
		return nil
	},
}

// splitShareToken separates "<id>#<key>" and decodes the key part.
func splitShareToken(token string) (string, []byte, error) {
	id, keyPart, found := strings.Cut(token, "#")
	if !found || id == "" || keyPart == "" {
		return "", nil, fmt.Errorf("%w: expected <id>#<key>", common.ErrBadShareToken)
	}
	key, err := cryptox.ImportKey(keyPart)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", common.ErrBadShareToken, err)
	}
	return id, key, nil
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(data), nil
}

func init() {
	readCmd.Flags().String("password", "", "password for protected notes")
	readCmd.Flags().String("out", "", "where to write a decrypted attachment (defaults to its original name)")
	rootCmd.AddCommand(readCmd)
}
