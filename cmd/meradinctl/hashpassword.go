package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/meradin/internal/opsauth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const defaultAuthFile = "ops.secret"

var errPasswordMismatch = errors.New("passwords do not match")

type hashPasswordOptions struct {
	file      string
	user      string
	overwrite bool
}

func newHashPasswordCmd() *cobra.Command {
	opts := hashPasswordOptions{file: os.Getenv("MERADIN_OPS_AUTH_FILE")}
	if opts.file == "" {
		opts.file = defaultAuthFile
	}
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Write an Argon2id ops credentials file",
		Long: `Prompts for a username and password and writes a "user:hash" line
to the ops auth file read by the server (ops_auth_file). The password is
read without echo when stdin is a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHashPassword(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", opts.file, "auth file to write (env MERADIN_OPS_AUTH_FILE)")
	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "username (prompted when empty)")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "replace an existing auth file")
	return cmd
}

func runHashPassword(cmd *cobra.Command, opts hashPasswordOptions) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	user := strings.TrimSpace(opts.user)
	if user == "" {
		fmt.Fprint(out, "Enter username: ")
		line, err := readLine(in)
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		user = line
	}

	password, err := readPassword(cmd.InOrStdin(), in, out, "Enter password:   ")
	if err != nil {
		return err
	}
	confirm, err := readPassword(cmd.InOrStdin(), in, out, "Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errPasswordMismatch
	}

	if err := opsauth.WriteFile(opts.file, user, password, opts.overwrite); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote credentials for %q to %s\n", user, opts.file)
	return nil
}

// readPassword reads without echo from a terminal and falls back to a
// plain line read for pipes.
func readPassword(raw io.Reader, buffered *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := raw.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := readLine(buffered)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return line, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
