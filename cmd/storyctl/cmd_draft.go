package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"story-server/internal/localstore"
	"story-server/internal/storygraph"

	"github.com/spf13/cobra"
)

var (
	exportOutput string
	draftsWatch  bool
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Work with local drafts",
}

var draftNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create an empty draft",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := cli.studio.NewDraft(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), d.ID)
		return nil
	},
}

var draftImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create or replace a draft from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		d, err := decodeDraftFile(f)
		if err != nil {
			return err
		}
		if err := cli.studio.SaveDraft(cmd.Context(), d); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), d.ID)
		return nil
	},
}

var draftExportCmd = &cobra.Command{
	Use:   "export <draft-id>",
	Short: "Write a draft as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "draft")
		if err != nil {
			return err
		}
		d, err := cli.studio.Draft(cmd.Context(), id)
		if err != nil {
			return err
		}
		if exportOutput == "" || exportOutput == "-" {
			return encodeDraftFile(cmd.OutOrStdout(), d)
		}
		f, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		if err := encodeDraftFile(f, d); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	},
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List drafts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !draftsWatch {
			drafts, err := cli.studio.Drafts(cmd.Context())
			if err != nil {
				return err
			}
			printDrafts(cmd.OutOrStdout(), drafts)
			return nil
		}

		updates, err := cli.store.WatchDrafts(cmd.Context())
		if err != nil {
			return err
		}
		for drafts := range updates {
			fmt.Fprintf(cmd.OutOrStdout(), "-- %s\n", time.Now().Format(time.TimeOnly))
			printDrafts(cmd.OutOrStdout(), drafts)
		}
		return nil
	},
}

var draftShowCmd = &cobra.Command{
	Use:   "show <draft-id>",
	Short: "Print a draft with its pages and choices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "draft")
		if err != nil {
			return err
		}
		d, err := cli.studio.Draft(cmd.Context(), id)
		if err != nil {
			return err
		}
		printDraft(cmd.OutOrStdout(), d)
		return nil
	},
}

var draftValidateCmd = &cobra.Command{
	Use:   "validate <draft-id>",
	Short: "Check whether a draft can be published",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "draft")
		if err != nil {
			return err
		}
		report, err := cli.studio.Validate(cmd.Context(), id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range report.Problems {
			fmt.Fprintf(out, "error:   %s\n", p)
		}
		for _, w := range report.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		if !report.OK() {
			return fmt.Errorf("draft has %d problem(s)", len(report.Problems))
		}
		fmt.Fprintln(out, "Draft is ready to publish")
		return nil
	},
}

var draftPublishCmd = &cobra.Command{
	Use:   "publish <draft-id>",
	Short: "Validate and publish a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "draft")
		if err != nil {
			return err
		}
		storyID, err := cli.studio.Publish(cmd.Context(), id)
		var vErr *storygraph.ValidationError
		if errors.As(err, &vErr) {
			for _, p := range vErr.Problems {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", p)
			}
			return fmt.Errorf("draft was not published: %d problem(s)", len(vErr.Problems))
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Published story %s\n", storyID)
		return nil
	},
}

var draftRmCmd = &cobra.Command{
	Use:     "rm <draft-id>",
	Aliases: []string{"discard"},
	Short:   "Delete a draft",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "draft")
		if err != nil {
			return err
		}
		return cli.studio.DiscardDraft(cmd.Context(), id)
	},
}

func init() {
	draftExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	draftListCmd.Flags().BoolVarP(&draftsWatch, "watch", "w", false, "Keep printing the list after every change")

	draftCmd.AddCommand(draftNewCmd, draftImportCmd, draftExportCmd, draftListCmd,
		draftShowCmd, draftValidateCmd, draftPublishCmd, draftRmCmd)
}

func printDrafts(out io.Writer, drafts []localstore.DraftSummary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPAGES\tTAGS\tSAVED")
	for _, d := range drafts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", d.ID, d.Title, d.PagesCount, strings.Join(d.Tags, ","), d.SavedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func printDraft(out io.Writer, d *storygraph.Draft) {
	fmt.Fprintf(out, "%s  %s\n", d.ID, d.Title)
	if d.Description != "" {
		fmt.Fprintln(out, d.Description)
	}
	if len(d.Tags) > 0 {
		fmt.Fprintf(out, "Tags: %s\n", strings.Join(d.Tags, ", "))
	}
	for i, p := range d.Pages {
		marker := ""
		if p.IsEnding {
			marker = " [ending]"
		}
		fmt.Fprintf(out, "\nPage %d%s\n  %s\n", i+1, marker, p.Text)
		for j, c := range p.Choices {
			fmt.Fprintf(out, "  %d. %s -> %s\n", j+1, c.Text, describeTarget(c.Target))
		}
	}
}

func describeTarget(t storygraph.DraftTarget) string {
	idx, ok := t.Index()
	if !ok {
		return "(no target)"
	}
	return fmt.Sprintf("page %d", idx+1)
}
