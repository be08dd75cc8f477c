package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/render"
	"github.com/planetary-social/planetary-cli/internal/ssb"
)

func newFeedCmd(opts *rootOptions) *cobra.Command {
	var (
		strategy string
		identity string
		seed     int64
		root     string
		hashtag  string
		limit    int
		offset   int
		discover bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print one page of a feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.setup(cmd, "")
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			s := e.svc.Strategy(ctx, discover)
			switch {
			case strategy != "":
				kind, err := feed.ParseKind(strategy)
				if err != nil {
					return err
				}
				s = feed.Strategy{
					Kind:     kind,
					Identity: ssb.Identity(identity),
					Seed:     seed,
					Root:     ssb.MessageKey(root),
					Hashtag:  feed.NormalizeHashtag(hashtag),
				}
			case hashtag != "":
				s = feed.HashtagStrategy(hashtag)
			case root != "":
				s = feed.RepliesStrategy(ssb.MessageKey(root))
			case identity != "":
				s = feed.ProfileStrategy(ssb.Identity(identity))
			}
			if limit < 1 {
				limit = e.cfg.PageSize
			}

			msgs, err := e.svc.Page(ctx, s, limit, offset)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(msgs)
			}
			return printMessages(cmd, msgs)
		},
	}
	f := cmd.Flags()
	f.StringVar(&strategy, "strategy", "", "feed strategy (default: the saved one)")
	f.StringVar(&identity, "identity", "", "profile identity; alone it selects the profile strategy")
	f.Int64Var(&seed, "seed", 0, "seed for the random strategy")
	f.StringVar(&root, "root", "", "thread root; alone it selects the replies strategy")
	f.StringVar(&hashtag, "hashtag", "", "tag; alone it selects the hashtag strategy")
	f.IntVar(&limit, "limit", 0, "page size (default: configured page size)")
	f.IntVar(&offset, "offset", 0, "messages to skip")
	f.BoolVar(&discover, "discover", false, "use the saved discover strategy")
	f.BoolVar(&asJSON, "json", false, "print messages as JSON")
	return cmd
}

func printMessages(cmd *cobra.Command, msgs []ssb.Message) error {
	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		_, err := fmt.Fprintln(out, "No messages.")
		return err
	}
	now := time.Now()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, msg := range msgs {
		replies := ""
		if n := msg.Metadata.ReplyCount; n > 0 {
			replies = strconv.Itoa(n) + "↩"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			msg.Key, render.DisplayName(msg), render.Summary(msg), replies, render.Age(msg, now))
	}
	return w.Flush()
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "show <message-key>",
		Short: "Print a message with its rendered text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd, "")
			if err != nil {
				return err
			}
			defer e.Close()

			msg, err := e.svc.Message(cmd.Context(), ssb.MessageKey(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n%s\n\n", render.DisplayName(msg), render.Age(msg, time.Now()), msg.Author())
			fmt.Fprintln(out, render.PostText(msg, width))
			if n := msg.Metadata.ReplyCount; n > 0 {
				fmt.Fprintf(out, "\n%d replies\n", n)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 80, "wrap width")
	return cmd
}
