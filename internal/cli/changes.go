package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/medibox/internal/store"
)

// ChangesOptions holds flags for the changes command.
type ChangesOptions struct {
	*RootOptions
	Database string
	Since    int64
	Limit    int
	Prefix   string // optional - filter to paths under this prefix
}

// ChangesResult holds the change log output.
type ChangesResult struct {
	Since   int64            `json:"since"`
	LastSeq int64            `json:"last_seq"`
	Changes []store.LogEntry `json:"changes"`
}

// NewChangesCommand creates the changes command.
func NewChangesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChangesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Show the change log",
		Long: `Show the tree's change log in commit order.

Every effective write is recorded with the value before and after it, so
the log shows both client writes and the writes handlers made in response.

Examples:
  medibox changes --db ./medibox.db
  medibox changes --db ./medibox.db --since 120 --limit 20
  medibox changes --db ./medibox.db --prefix Medicine-Order --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChanges(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides MEDIBOX_DB)")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only show changes after this sequence number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of changes to show (0 = all)")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only show changes at or below this path")

	return cmd
}

func runChanges(opts *ChangesOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fail(CodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	var prefix string
	if opts.Prefix != "" {
		segs, err := store.SplitPath(opts.Prefix)
		if err != nil {
			return fail(CodeInput, "invalid prefix", err)
		}
		prefix = store.JoinPath(segs...)
	}

	// The limit applies after filtering, so read everything when filtering.
	limit := opts.Limit
	if prefix != "" {
		limit = 0
	}
	entries, err := st.Changes(cmd.Context(), opts.Since, limit)
	if err != nil {
		return fail(CodeDatabase, "failed to read change log", err)
	}
	entries = filterChanges(entries, prefix, opts.Limit)

	result := ChangesResult{
		Since:   opts.Since,
		LastSeq: st.LastSeq(),
		Changes: entries,
	}

	return opts.formatter(cmd).Success(result)
}

// filterChanges keeps entries at or below prefix, at most limit of them.
func filterChanges(entries []store.LogEntry, prefix string, limit int) []store.LogEntry {
	out := make([]store.LogEntry, 0, len(entries))
	for _, e := range entries {
		if prefix != "" && e.Path != prefix && !strings.HasPrefix(e.Path, prefix+"/") {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// renderText prints one line per entry, with values in verbose mode.
func (r ChangesResult) renderText(w io.Writer, verbose bool) {
	if len(r.Changes) == 0 {
		fmt.Fprintln(w, "No changes.")
		return
	}
	for _, e := range r.Changes {
		renderLogEntry(w, e, verbose)
	}
	fmt.Fprintf(w, "\n%d changes (last seq %d)\n", len(r.Changes), r.LastSeq)
}

func renderLogEntry(w io.Writer, e store.LogEntry, verbose bool) {
	fmt.Fprintf(w, "[%d] %s %s\n", e.Seq, changeKind(e), e.Path)
	if !verbose {
		return
	}
	if e.Before != nil {
		fmt.Fprintf(w, "      before: %s\n", compactJSON(e.Before))
	}
	if e.After != nil {
		fmt.Fprintf(w, "      after:  %s\n", compactJSON(e.After))
	}
}

// changeKind labels an entry by what happened to the value.
func changeKind(e store.LogEntry) string {
	switch {
	case e.Before == nil:
		return "CREATE"
	case e.After == nil:
		return "DELETE"
	default:
		return "UPDATE"
	}
}
