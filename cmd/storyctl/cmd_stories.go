package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"story-server/internal/client"
	"story-server/internal/models"

	"github.com/spf13/cobra"
)

var (
	storiesTag    string
	storiesQuery  string
	storiesCursor string
	storiesLimit  int
	storiesCached bool
	storiesSync   bool

	reviewRating int
	reviewText   string
	reviewsLimit int
)

var storiesCmd = &cobra.Command{
	Use:   "stories",
	Short: "Browse published stories",
}

var storiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published stories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if storiesCached {
			stories, err := cli.studio.CachedStories(cmd.Context(), storiesTag)
			if err != nil {
				return err
			}
			printStories(out, stories)
			return nil
		}

		q := client.StoryQuery{Tag: storiesTag, Query: storiesQuery, Cursor: storiesCursor, Limit: storiesLimit}
		if storiesSync {
			n, next, err := cli.studio.SyncCatalog(cmd.Context(), q, 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Cached %d stories\n", n)
			printCursor(out, next)
			return nil
		}

		page, err := cli.api.ListStories(cmd.Context(), q)
		if err != nil {
			return err
		}
		printStories(out, page.Data)
		printCursor(out, page.NextCursor)
		return nil
	},
}

var storiesShowCmd = &cobra.Command{
	Use:   "show <story-id>",
	Short: "Show a story's details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "story")
		if err != nil {
			return err
		}
		detail, offline, err := cli.studio.OpenStory(cmd.Context(), id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if offline {
			fmt.Fprintln(out, "(offline: showing cached copy)")
		}
		st := detail.Story
		fmt.Fprintf(out, "%s\nby %s\n", st.Title, detail.AuthorName)
		if st.Description != "" {
			fmt.Fprintf(out, "\n%s\n", st.Description)
		}
		fmt.Fprintf(out, "\nPages:   %d\n", len(st.Pages))
		fmt.Fprintf(out, "Tags:    %s\n", strings.Join(st.Tags, ", "))
		fmt.Fprintf(out, "Likes:   %d", detail.LikesCount)
		if detail.IsLiked {
			fmt.Fprint(out, " (you like it)")
		}
		fmt.Fprintf(out, "\nRating:  %.1f (%d reviews)\n", detail.RatingAvg, detail.ReviewsCount)
		return nil
	},
}

var storiesRmCmd = &cobra.Command{
	Use:   "rm <story-id>",
	Short: "Delete your published story from the server and the cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "story")
		if err != nil {
			return err
		}
		if err := cli.api.DeleteStory(cmd.Context(), id); err != nil {
			return err
		}
		return cli.studio.ForgetStory(cmd.Context(), id)
	},
}

var readCmd = &cobra.Command{
	Use:   "read <story-id>",
	Short: "Read a story interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "story")
		if err != nil {
			return err
		}
		detail, offline, err := cli.studio.OpenStory(cmd.Context(), id)
		if err != nil {
			return err
		}
		if offline {
			fmt.Fprintln(cmd.ErrOrStderr(), "(offline: reading cached copy)")
		}
		reader, err := cli.studio.Read(detail)
		if err != nil {
			return err
		}
		return runReader(cmd.Context(), reader, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Read and write reviews",
}

var reviewAddCmd = &cobra.Command{
	Use:   "add <story-id>",
	Short: "Review a story",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "story")
		if err != nil {
			return err
		}
		review, err := cli.api.AddReview(cmd.Context(), id, reviewRating, reviewText)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Review %s saved\n", review.ID)
		return nil
	},
}

var reviewListCmd = &cobra.Command{
	Use:   "list <story-id>",
	Short: "List reviews of a story",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "story")
		if err != nil {
			return err
		}
		page, err := cli.api.ListReviews(cmd.Context(), id, storiesCursor, reviewsLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range page.Data {
			fmt.Fprintf(out, "%s  %s  %s\n", stars(r.Rating), r.AuthorName, r.CreatedAt.Local().Format(time.DateOnly))
			if r.Text != "" {
				fmt.Fprintf(out, "  %s\n", r.Text)
			}
		}
		printCursor(out, page.NextCursor)
		return nil
	},
}

var likeCmd = &cobra.Command{
	Use:   "like <story-id>",
	Short: "Like a story",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "story")
		if err != nil {
			return err
		}
		return cli.api.Like(cmd.Context(), id)
	},
}

var unlikeCmd = &cobra.Command{
	Use:   "unlike <story-id>",
	Short: "Remove your like",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "story")
		if err != nil {
			return err
		}
		return cli.api.Unlike(cmd.Context(), id)
	},
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags with story counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, err := cli.api.ListTags(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, t := range tags {
			fmt.Fprintf(tw, "%s\t%d\n", t.Name, t.Stories)
		}
		return tw.Flush()
	},
}

func init() {
	storiesListCmd.Flags().StringVar(&storiesTag, "tag", "", "Only stories with this tag")
	storiesListCmd.Flags().StringVarP(&storiesQuery, "query", "q", "", "Search in titles")
	storiesListCmd.Flags().StringVar(&storiesCursor, "cursor", "", "Continue from a previous page")
	storiesListCmd.Flags().IntVar(&storiesLimit, "limit", 20, "Page size")
	storiesListCmd.Flags().BoolVar(&storiesCached, "cached", false, "List the local cache instead of the server")
	storiesListCmd.Flags().BoolVar(&storiesSync, "sync", false, "Download the page into the local cache")
	storiesListCmd.MarkFlagsMutuallyExclusive("cached", "sync")
	storiesCmd.AddCommand(storiesListCmd, storiesShowCmd, storiesRmCmd)

	reviewAddCmd.Flags().IntVar(&reviewRating, "rating", 0, fmt.Sprintf("Rating from %d to %d", models.MinRating, models.MaxRating))
	reviewAddCmd.Flags().StringVar(&reviewText, "text", "", "Review text")
	_ = reviewAddCmd.MarkFlagRequired("rating")
	reviewListCmd.Flags().StringVar(&storiesCursor, "cursor", "", "Continue from a previous page")
	reviewListCmd.Flags().IntVar(&reviewsLimit, "limit", 20, "Page size")
	reviewCmd.AddCommand(reviewAddCmd, reviewListCmd)
}

func printStories(out io.Writer, stories []models.StorySummary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tPAGES\tLIKES\tRATING\tTAGS")
	for _, s := range stories {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.1f\t%s\n",
			s.ID, s.Title, s.AuthorName, s.PagesCount, s.LikesCount, s.RatingAvg, strings.Join(s.Tags, ","))
	}
	_ = tw.Flush()
}

func printCursor(out io.Writer, next string) {
	if next != "" {
		fmt.Fprintf(out, "\nMore: --cursor %s\n", next)
	}
}

func stars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > models.MaxRating {
		rating = models.MaxRating
	}
	return strings.Repeat("*", rating) + strings.Repeat(".", models.MaxRating-rating)
}
