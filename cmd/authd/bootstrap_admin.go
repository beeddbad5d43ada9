package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/pkg/logger"
)

// adminPasswordEnv is read when --password-stdin is not given. The password is never
// accepted as a flag so it stays out of shell history and the process list.
const adminPasswordEnv = "AUTHD_ADMIN_PASSWORD"

func newBootstrapAdminCmd() *cobra.Command {
	var (
		in            ports.SignupInput
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create an ADMIN account directly in the credential store",
		Long: `Creates an administrator without going through the HTTP API. Use it to create
the first ADMIN; further administrators can be created by an ADMIN via
POST /admin/accounts.

The password is read from the first line of stdin with --password-stdin, or from
the ` + adminPasswordEnv + ` environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readAdminPassword(cmd.InOrStdin(), passwordStdin, os.LookupEnv)
			if err != nil {
				return err
			}
			in.Password = password
			if in.Name == "" || in.Email == "" {
				return errors.New("--name and --email are required")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			app, err := build(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer app.close(context.Background(), logger.Get())

			res, err := app.accounts.BootstrapAdmin(ctx, in)
			if err != nil {
				return fmt.Errorf("bootstrap admin: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", res.Account.Email, res.Account.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the initial password from stdin")
	return cmd
}

// readAdminPassword takes the first line of stdin when fromStdin is set, otherwise
// the adminPasswordEnv variable. Only the line terminator is stripped.
func readAdminPassword(stdin io.Reader, fromStdin bool, lookupEnv func(string) (string, bool)) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password from stdin: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", errors.New("empty password on stdin")
		}
		return password, nil
	}

	password, ok := lookupEnv(adminPasswordEnv)
	if !ok || password == "" {
		return "", fmt.Errorf("set %s or pass --password-stdin", adminPasswordEnv)
	}
	return password, nil
}
