package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhcgn/application-tracker/credential"
)

// OpenStore opens the keyring used by the credential commands.
var OpenStore = credential.Open

// NewCredentialCommand manages the IMAP password kept in the keyring.
func NewCredentialCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Store or remove the IMAP password in the system keyring",
	}
	cmd.PersistentFlags().StringVar(&user, "imap-user", "", "IMAP username the password belongs to")
	_ = cmd.MarkPersistentFlagRequired("imap-user")

	set := &cobra.Command{
		Use:   "set",
		Short: "Read the IMAP password from stdin and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			store, err := OpenStore()
			if err != nil {
				return err
			}
			if err := store.Set(credential.IMAPKey(user), password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored IMAP password for %s\n", user)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored IMAP password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := OpenStore()
			if err != nil {
				return err
			}
			err = store.Delete(credential.IMAPKey(user))
			if errors.Is(err, credential.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "No IMAP password stored for %s\n", user)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed IMAP password for %s\n", user)
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}

// readPassword takes the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("empty password on stdin")
	}
	return password, nil
}
