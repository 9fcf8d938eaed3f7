package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/medibox/internal/model"
	"github.com/roach88/medibox/internal/notify"
	"github.com/roach88/medibox/internal/store"
)

// NotifyOptions holds flags for the notify command.
type NotifyOptions struct {
	*RootOptions
	Database string
	Topic    string
	Title    string
	Body     string
}

// DeliveryResult reports a test notification.
type DeliveryResult struct {
	Target string        `json:"target"`
	Report notify.Report `json:"report"`
}

func (r DeliveryResult) renderText(w io.Writer, verbose bool) {
	if r.Report.Resolved == 0 && r.Report.Delivered == 0 && r.Report.Failed == 0 {
		fmt.Fprintf(w, "%s: no registration token\n", r.Target)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", r.Target, renderReport(r.Report))
}

// renderReport summarizes a dispatch, e.g. "3 tokens, 2 delivered, 1 failed, 1 pruned".
func renderReport(rep notify.Report) string {
	parts := make([]string, 0, 4)
	if rep.Resolved > 0 {
		noun := "tokens"
		if rep.Resolved == 1 {
			noun = "token"
		}
		parts = append(parts, fmt.Sprintf("%d %s", rep.Resolved, noun))
	}
	parts = append(parts,
		fmt.Sprintf("%d delivered", rep.Delivered),
		fmt.Sprintf("%d failed", rep.Failed),
	)
	if rep.Pruned > 0 {
		parts = append(parts, fmt.Sprintf("%d pruned", rep.Pruned))
	}
	return strings.Join(parts, ", ")
}

// NewNotifyCommand creates the notify command.
func NewNotifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "notify [User/<name>|Pharmacy/<name>]",
		Short: "Send a test notification",
		Long: `Send a test notification to every device registered for a user or
pharmacy, or to a topic with --topic, through the configured push transport.

Tokens the transport reports as dead are removed, as they are for
notifications sent by the handlers.

Example:
  medibox notify User/alice
  medibox notify Pharmacy/pharmA --title "Ping" --format json
  medibox notify --topic medicineOrder`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides MEDIBOX_DB)")
	cmd.Flags().StringVar(&opts.Topic, "topic", "", "broadcast to this topic instead of a recipient")
	cmd.Flags().StringVar(&opts.Title, "title", "medibox test", "notification title")
	cmd.Flags().StringVar(&opts.Body, "body", "This device receives medibox notifications.", "notification body")

	return cmd
}

func runNotify(opts *NotifyOptions, args []string, cmd *cobra.Command) error {
	if (len(args) == 1) == (opts.Topic != "") {
		return fail(CodeInput, "give either a recipient or --topic", nil)
	}
	var recipient notify.Recipient
	if len(args) == 1 {
		r, err := parseRecipient(args[0])
		if err != nil {
			return err
		}
		recipient = r
	}

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

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		return fail(CodeTransport, "failed to create push transport", err)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fail(CodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	dispatcher := notify.NewDispatcher(st, transport)
	var (
		result DeliveryResult
		rep    notify.Report
	)
	if opts.Topic != "" {
		result.Target = "topic " + opts.Topic
		msg := notify.NewMessage(notify.ActionTestNotification, notify.GroupPharmacy, notify.PriorityMedium, opts.Title, opts.Body)
		rep, err = dispatcher.Broadcast(ctx, opts.Topic, msg)
	} else {
		result.Target = recipient.String()
		msg := notify.NewMessage(notify.ActionTestNotification, recipient.Group, notify.PriorityMedium, opts.Title, opts.Body)
		rep, err = dispatcher.Notify(ctx, recipient, msg)
	}
	result.Report = rep

	out := opts.formatter(cmd)
	if err != nil {
		return out.Failure(result, fail(CodeDelivery, "notification failed", err))
	}
	if rep.Failed > 0 && rep.Delivered == 0 {
		return out.Failure(result, fail(CodeDelivery, "no device accepted the notification", nil))
	}
	return out.Success(result)
}

// parseRecipient reads "User/<name>" or "Pharmacy/<name>".
func parseRecipient(arg string) (notify.Recipient, error) {
	group, name, ok := strings.Cut(arg, "/")
	if !ok || !model.IsKey(name) {
		return notify.Recipient{}, fail(CodeInput, fmt.Sprintf("recipient %q must be User/<name> or Pharmacy/<name>", arg), nil)
	}
	switch notify.Group(group) {
	case notify.GroupUser:
		return notify.User(name), nil
	case notify.GroupPharmacy:
		return notify.Pharmacy(name), nil
	default:
		return notify.Recipient{}, fail(CodeInput, fmt.Sprintf("unknown recipient group %q", group), nil)
	}
}
