package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Tree is the store access a Dispatcher needs.
type Tree interface {
	Get(ctx context.Context, path string) (any, error)
	Delete(ctx context.Context, path string) error
}

// Report summarizes one dispatch.
type Report struct {
	Resolved  int `json:"resolved"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Pruned    int `json:"pruned"`
}

// Dispatcher sends messages to recipients' devices and prunes dead tokens.
type Dispatcher struct {
	tree      Tree
	transport Transport
}

// NewDispatcher creates a Dispatcher reading tokens from tree.
func NewDispatcher(tree Tree, transport Transport) *Dispatcher {
	return &Dispatcher{tree: tree, transport: transport}
}

// Notify sends msg to every device registered for r.
func (d *Dispatcher) Notify(ctx context.Context, r Recipient, msg Message) (Report, error) {
	return d.NotifyAll(ctx, []Recipient{r}, msg)
}

// NotifyAll sends msg to every device registered for any of recipients. A
// recipient without tokens is skipped. A single resolved token is sent
// directly; several go out in one multicast call.
//
// The returned error covers token lookup, a failed multicast call and failed
// token removals. Per-token delivery failures are logged and counted only.
func (d *Dispatcher) NotifyAll(ctx context.Context, recipients []Recipient, msg Message) (Report, error) {
	var refs []tokenRef
	for _, r := range recipients {
		v, err := d.tree.Get(ctx, r.TokenPath())
		if err != nil {
			return Report{}, fmt.Errorf("resolve tokens for %s: %w", r, err)
		}
		found := resolveTokens(r.TokenPath(), v)
		if len(found) == 0 {
			slog.Debug("no registration token", "recipient", r.String(), "action", msg.Action())
		}
		refs = append(refs, found...)
	}
	refs = dedupe(refs)

	report := Report{Resolved: len(refs)}
	if len(refs) == 0 {
		return report, nil
	}

	results, err := d.send(ctx, refs, msg)
	if err != nil {
		report.Failed = len(refs)
		return report, err
	}

	var dead []tokenRef
	for i, res := range results {
		if res.Err == nil {
			report.Delivered++
			continue
		}
		report.Failed++
		slog.Warn("notification delivery failed",
			"token", res.Token,
			"action", msg.Action(),
			"code", CodeOf(res.Err),
			"error", res.Err,
		)
		if IsPermanent(res.Err) {
			dead = append(dead, refs[i])
		}
	}

	pruned, err := d.prune(ctx, dead)
	report.Pruned = pruned
	return report, err
}

// Broadcast sends msg to every subscriber of topic.
func (d *Dispatcher) Broadcast(ctx context.Context, topic string, msg Message) (Report, error) {
	if err := d.transport.SendToTopic(ctx, topic, msg); err != nil {
		return Report{Failed: 1}, fmt.Errorf("broadcast to %s: %w", topic, err)
	}
	return Report{Delivered: 1}, nil
}

func (d *Dispatcher) send(ctx context.Context, refs []tokenRef, msg Message) ([]Result, error) {
	if len(refs) == 1 {
		err := d.transport.Send(ctx, refs[0].token, msg)
		return []Result{{Token: refs[0].token, Err: err}}, nil
	}

	tokens := make([]string, len(refs))
	for i, r := range refs {
		tokens[i] = r.token
	}
	results, err := d.transport.SendMulticast(ctx, tokens, msg)
	if err != nil {
		return nil, fmt.Errorf("multicast to %d tokens: %w", len(tokens), err)
	}
	if len(results) != len(tokens) {
		return nil, fmt.Errorf("multicast to %d tokens: got %d results", len(tokens), len(results))
	}
	return results, nil
}

// prune removes every dead token concurrently and waits for all removals.
func (d *Dispatcher) prune(ctx context.Context, dead []tokenRef) (int, error) {
	if len(dead) == 0 {
		return 0, nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, ref := range dead {
		wg.Add(1)
		go func(ref tokenRef) {
			defer wg.Done()
			if err := d.tree.Delete(ctx, ref.path); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("prune token at %s: %w", ref.path, err))
				mu.Unlock()
				return
			}
			slog.Info("pruned registration token", "path", ref.path)
		}(ref)
	}
	wg.Wait()
	return len(dead) - len(errs), errors.Join(errs...)
}
