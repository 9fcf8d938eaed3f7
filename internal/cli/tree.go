package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/medibox/internal/store"
)

// TreeOptions holds flags shared by the get, set, merge and delete commands.
type TreeOptions struct {
	*RootOptions
	Database string
	Wait     time.Duration
}

// WriteResult reports a one-shot write.
type WriteResult struct {
	Op      string `json:"op"`
	Path    string `json:"path"`
	Applied bool   `json:"applied"`
	Seq     int64  `json:"seq"`

	// Changes counts change log entries made by the write and the handlers
	// it triggered.
	Changes int64 `json:"changes"`
}

func (r WriteResult) String() string {
	if !r.Applied {
		return fmt.Sprintf("%s %s: nothing to change", r.Op, r.Path)
	}
	return fmt.Sprintf("%s %s: ok (seq %d, %d changes)", r.Op, r.Path, r.Seq, r.Changes)
}

func (r WriteResult) renderText(w io.Writer, verbose bool) {
	fmt.Fprintln(w, r.String())
}

// NodeResult is the output of get.
type NodeResult struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// renderText prints the bare value so it can be piped into set.
func (r NodeResult) renderText(w io.Writer, verbose bool) {
	data, err := json.MarshalIndent(r.Value, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%v\n", r.Value)
		return
	}
	fmt.Fprintln(w, string(data))
}

func addTreeFlags(cmd *cobra.Command, opts *TreeOptions, writes bool) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides MEDIBOX_DB)")
	if writes {
		cmd.Flags().DurationVar(&opts.Wait, "wait", 30*time.Second, "how long to wait for triggered handlers")
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TreeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Print the value at a path",
		Long: `Print the value stored at a tree path as JSON.

Example:
  medibox get Pharmacy/pharmA/Pharmacy-Details
  medibox get Medicine-Order/Active --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, args[0], cmd)
		},
	}
	addTreeFlags(cmd, opts, false)
	return cmd
}

func runGet(opts *TreeOptions, path string, cmd *cobra.Command) error {
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

	v, err := st.Get(cmd.Context(), path)
	if err != nil {
		return fail(CodeDatabase, "failed to read path", err)
	}

	return opts.formatter(cmd).Success(NodeResult{Path: path, Value: v})
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TreeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set <path> <json>",
		Short: "Replace the value at a path",
		Long: `Replace the value at a tree path and run the handlers it triggers.

The command returns once every triggered handler has finished.

Example:
  medibox set Medicine-Order/Active/o1 '{"id":"o1","userName":"alice"}'
  medibox set User/alice/registrationToken '"device-token"'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseJSONArg(args[1])
			if err != nil {
				return err
			}
			return runWrite(opts, "set", args[0], cmd, func(ctx context.Context, st *store.Store) (bool, error) {
				return true, st.Set(ctx, args[0], value)
			})
		},
	}
	addTreeFlags(cmd, opts, true)
	return cmd
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TreeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <path> <json-object>",
		Short: "Update fields below an existing node",
		Long: `Set each field of a JSON object below an existing node in one write,
and run the handlers it triggers. Field keys may be relative paths. A missing
node is left alone.

Example:
  medibox merge Medicine-Order/Active/o1 '{"availability":false}'
  medibox merge Medicine-Order/Active/o1 '{"pharmacyDetails/name":"pharmA"}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseJSONArg(args[1])
			if err != nil {
				return err
			}
			fields, ok := value.(map[string]any)
			if !ok {
				return fail(CodeInput, "merge value must be a JSON object", nil)
			}
			return runWrite(opts, "merge", args[0], cmd, func(ctx context.Context, st *store.Store) (bool, error) {
				return st.Merge(ctx, args[0], fields)
			})
		},
	}
	addTreeFlags(cmd, opts, true)
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TreeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <path>",
		Short: "Remove a node and everything below it",
		Long: `Remove the node at a tree path and run the handlers it triggers.

Example:
  medibox delete Medicine-Order/Inactive/o1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(opts, "delete", args[0], cmd, func(ctx context.Context, st *store.Store) (bool, error) {
				return true, st.Delete(ctx, args[0])
			})
		},
	}
	addTreeFlags(cmd, opts, true)
	return cmd
}

// runWrite performs one client write with the handlers running and waits
// until they settle.
func runWrite(opts *TreeOptions, op, path string, cmd *cobra.Command, write func(context.Context, *store.Store) (bool, error)) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := startApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	before := a.store.LastSeq()
	applied, err := write(ctx, a.store)
	if err != nil {
		return fail(CodeWrite, op+" failed", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Wait)
	defer cancel()
	if err := a.router.WaitIdle(waitCtx); err != nil {
		return fail(CodeUnsettled, "handlers did not finish", err)
	}

	seq := a.store.LastSeq()
	return opts.formatter(cmd).Success(WriteResult{
		Op:      op,
		Path:    path,
		Applied: applied,
		Seq:     seq,
		Changes: seq - before,
	})
}

func parseJSONArg(arg string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return nil, fail(CodeInput, "value must be JSON (quote strings: '\"text\"')", err)
	}
	return v, nil
}
