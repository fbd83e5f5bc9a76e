// Package cli implements the paperclip command tree on top of the record
// service.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/dmitrijs2005/paperclip/internal/attachment"
	"github.com/dmitrijs2005/paperclip/internal/models"
	"github.com/spf13/cobra"
)

// Env is what the commands need from the application.
type Env interface {
	New(kind, title string) *models.Record
	Save(ctx context.Context, r *models.Record) error
	Get(ctx context.Context, id string) (*models.Record, error)
	List(ctx context.Context, kind string) ([]*models.Record, error)
	Attach(ctx context.Context, id, name string, value any) (*models.Record, error)
	Detach(ctx context.Context, id, name string) (*models.Record, error)
	Delete(ctx context.Context, r *models.Record) error
	Migrate(ctx context.Context) error
	Close() error
}

// Opener builds the Env once a command is about to run.
type Opener func(ctx context.Context) (Env, error)

type runner struct {
	open        Opener
	env         Env
	metricsFile string
}

// run opens the Env for the duration of fn and closes it afterwards, also
// when fn fails. Metrics are exported last so they include failures.
func (r *runner) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		env, err := r.open(cmd.Context())
		if err != nil {
			return err
		}
		r.env = env
		defer func() {
			err = errors.Join(err, env.Close())
			r.env = nil
			if r.metricsFile != "" {
				err = errors.Join(err, attachment.WriteMetrics(r.metricsFile))
			}
		}()
		return fn(cmd, args)
	}
}

// NewRootCmd returns the paperclip command tree.
func NewRootCmd(open Opener) *cobra.Command {
	r := &runner{open: open}

	root := &cobra.Command{
		Use:   "paperclip",
		Short: "Manage records and their file attachments",
		Long: `paperclip stores uploaded files for records, generates the configured
variants (thumbnails, watermarks, ...) and keeps storage in sync with the
database.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&r.metricsFile, "metrics-textfile", "",
		"write attachment metrics to `file` in Prometheus text format after the command")

	root.AddCommand(
		r.migrateCmd(),
		r.createCmd(),
		r.listCmd(),
		r.showCmd(),
		r.attachCmd(),
		r.detachCmd(),
		r.urlsCmd(),
		r.deleteCmd(),
	)
	return root
}

func (r *runner) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, _ []string) error {
			if err := r.env.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		}),
	}
}

func (r *runner) createCmd() *cobra.Command {
	var (
		kind, title string
		attach      []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record, optionally with attachments",
		Example: `  paperclip create --kind photo --title "Cat" --attach avatar=./cat.png
  paperclip create --title "Report" --attach document=https://example.com/r.pdf`,
		Args: cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, _ []string) error {
			rec := r.env.New(kind, title)
			for _, a := range attach {
				name, value, ok := strings.Cut(a, "=")
				if !ok || name == "" || value == "" {
					return fmt.Errorf("invalid --attach %q, want name=file", a)
				}
				if err := rec.Attachments().Set(cmd.Context(), name, value); err != nil {
					return err
				}
			}
			if err := r.env.Save(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&kind, "kind", "", "record kind")
	cmd.Flags().StringVar(&title, "title", "", "record title")
	cmd.Flags().StringArrayVar(&attach, "attach", nil, "attachment as name=file|url (repeatable)")
	return cmd
}

func (r *runner) listCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List records",
		Args:    cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, _ []string) error {
			recs, err := r.env.List(cmd.Context(), kind)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rec := range recs {
				fmt.Fprintf(out, "%s\t%s\t%s\n", rec.ID, rec.Kind, rec.Title)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only records of this kind")
	return cmd
}

func (r *runner) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show a record and its attachments",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string) error {
			rec, err := r.env.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		}),
	}
}

func (r *runner) attachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <record-id> <attachment> <file|url>",
		Short: "Upload a file to an attachment and generate its variants",
		Args:  cobra.ExactArgs(3),
		RunE: r.run(func(cmd *cobra.Command, args []string) error {
			rec, err := r.env.Attach(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		}),
	}
}

func (r *runner) detachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detach <record-id> <attachment>",
		Short: "Remove an attachment and its stored files",
		Args:  cobra.ExactArgs(2),
		RunE: r.run(func(cmd *cobra.Command, args []string) error {
			if _, err := r.env.Detach(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s detached\n", args[1])
			return nil
		}),
	}
}

func (r *runner) urlsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "urls <record-id> <attachment>",
		Short: "Print the URL of every variant",
		Args:  cobra.ExactArgs(2),
		RunE: r.run(func(cmd *cobra.Command, args []string) error {
			rec, err := r.env.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			urls, err := rec.Attachments().URLsFor(args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range slices.Sorted(maps.Keys(urls)) {
				fmt.Fprintf(out, "%s\t%s\n", name, urls[name])
			}
			return nil
		}),
	}
}

func (r *runner) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <record-id>",
		Short: "Delete a record and its attachment files",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, args []string) error {
			rec, err := r.env.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := r.env.Delete(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted\n", rec.ID)
			return nil
		}),
	}
}

func printRecord(w io.Writer, rec *models.Record) {
	fmt.Fprintf(w, "id:    %s\nkind:  %s\ntitle: %s\n", rec.ID, rec.Kind, rec.Title)
	for _, a := range rec.Attachments().All() {
		if !a.Exists() {
			fmt.Fprintf(w, "%s: -\n", a.Name())
			continue
		}
		fmt.Fprintf(w, "%s: %s (%s, %d bytes)\n", a.Name(), a.OriginalFilename(), a.ContentType(), a.Size())
		for v := range a.Variants(true) {
			p, _ := a.VariantPath(v)
			fmt.Fprintf(w, "  %s\t%s\n", v, p)
		}
	}
}
