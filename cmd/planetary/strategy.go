package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/ssb"
)

func newStrategyCmd(opts *rootOptions) *cobra.Command {
	var discover bool
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Show or change the saved feed strategies",
	}
	cmd.PersistentFlags().BoolVar(&discover, "discover", false, "the discover feed instead of home")

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the saved strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.setup(cmd, "")
			if err != nil {
				return err
			}
			defer e.Close()
			_, err = fmt.Fprintln(cmd.OutOrStdout(), e.svc.Strategy(cmd.Context(), discover))
			return err
		},
	}

	var (
		identity string
		seed     int64
		root     string
		hashtag  string
	)
	set := &cobra.Command{
		Use:       "set <kind>",
		Short:     "Save a strategy",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := feed.ParseKind(args[0])
			if err != nil {
				return err
			}
			e, err := opts.setup(cmd, "")
			if err != nil {
				return err
			}
			defer e.Close()

			s := feed.Strategy{
				Kind:     kind,
				Identity: ssb.Identity(identity),
				Seed:     seed,
				Root:     ssb.MessageKey(root),
				Hashtag:  feed.NormalizeHashtag(hashtag),
			}
			if err := e.svc.SetStrategy(cmd.Context(), discover, s); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		},
	}
	set.Flags().StringVar(&identity, "identity", "", "profile identity for the profile strategy")
	set.Flags().Int64Var(&seed, "seed", 0, "fixed seed for the random strategy")
	set.Flags().StringVar(&root, "root", "", "thread root for the replies strategy")
	set.Flags().StringVar(&hashtag, "hashtag", "", "tag for the hashtag strategy")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the available strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, k := range kindNames() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), k); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.AddCommand(get, set, list)
	return cmd
}

func kindNames() []string {
	names := make([]string, len(feed.Kinds))
	for i, k := range feed.Kinds {
		names[i] = string(k)
	}
	return names
}
