package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/planetary-social/planetary-cli/internal/ssb"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Index messages from a JSON array or JSON lines file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer f.Close()
				r = f
			}

			e, err := opts.setup(cmd, "")
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.svc.ImportMessages(cmd.Context(), r)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new of %d messages.\n", res.Inserted, res.Read)
			return err
		},
	}
}

func newPubCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pub",
		Short: "Manage known pubs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <identity>",
		Short: "Mark an identity as a pub so it is left out of feeds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd, "")
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.svc.AddPub(cmd.Context(), ssb.Identity(args[0])); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added pub %s.\n", args[0])
			return err
		},
	})
	return cmd
}
