package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/config"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInterval = 2 * time.Second
	defaultTimeout  = 5 * time.Second
	defaultBatch    = 100
)

// DeliveryStore is what the dispatcher needs from the record store.
type DeliveryStore interface {
	PendingNotifications(ctx context.Context, afterID int64, limit int) ([]domain.Notification, error)
	MarkDelivered(ctx context.Context, id int64, at string) error
}

// Dispatcher posts queued notifications to the configured webhooks. A
// notification is marked delivered once every matching hook accepted it;
// a failing hook leaves it queued for the next tick.
type Dispatcher struct {
	Store    DeliveryStore
	Webhooks []config.WebhookConfig
	Client   *http.Client
	Interval time.Duration
	Batch    int
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewDispatcher(store DeliveryStore, hooks []config.WebhookConfig) *Dispatcher {
	return &Dispatcher{
		Store:    store,
		Webhooks: hooks,
		Client:   &http.Client{Timeout: defaultTimeout},
		Interval: defaultInterval,
		Logger:   slog.Default(),
		Now:      time.Now,
	}
}

// Enabled reports whether at least one webhook would receive deliveries.
func (d *Dispatcher) Enabled() bool {
	for _, hook := range d.Webhooks {
		if hookEnabled(hook) {
			return true
		}
	}
	return false
}

// Run dispatches until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := d.DispatchOnce(ctx); err != nil {
			d.logger().Warn("notify: dispatch failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce walks every queued notification once, in id order and in
// batches, and returns how many were marked delivered. Rows that stay queued
// do not block newer ones.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	batch := d.Batch
	if batch <= 0 {
		batch = defaultBatch
	}
	delivered := 0
	var after int64
	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		pending, err := d.Store.PendingNotifications(ctx, after, batch)
		if err != nil {
			return delivered, fmt.Errorf("fetch notifications: %w", err)
		}
		for _, n := range pending {
			after = n.ID
			if !d.deliver(ctx, n) {
				continue
			}
			if err := d.Store.MarkDelivered(ctx, n.ID, d.now().UTC().Format(time.RFC3339)); err != nil {
				return delivered, fmt.Errorf("mark notification %d delivered: %w", n.ID, err)
			}
			delivered++
		}
		if len(pending) < batch {
			return delivered, nil
		}
	}
}

// deliver posts n to every matching hook and reports whether all accepted it.
func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification) bool {
	var g errgroup.Group
	for _, hook := range d.Webhooks {
		if !hookEnabled(hook) || !newFilter(hook).match(n) {
			continue
		}
		g.Go(func() error {
			if err := d.post(ctx, hook, n); err != nil {
				d.logger().Warn("notify: webhook delivery failed", "url", hook.URL, "notification", n.ID, "err", err)
				return err
			}
			return nil
		})
	}
	return g.Wait() == nil
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func hookEnabled(hook config.WebhookConfig) bool {
	if hook.Enabled != nil && !*hook.Enabled {
		return false
	}
	return strings.TrimSpace(hook.URL) != ""
}

type webhookBody struct {
	ID        int64  `json:"id"`
	CaseID    string `json:"case_id"`
	Category  string `json:"category"`
	Priority  string `json:"priority"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (d *Dispatcher) post(ctx context.Context, hook config.WebhookConfig, n domain.Notification) error {
	data, err := json.Marshal(webhookBody{
		ID:        n.ID,
		CaseID:    n.CaseID,
		Category:  n.Category,
		Priority:  n.Priority,
		Title:     n.Title,
		Body:      n.Body,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return err
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if hook.TimeoutSeconds > 0 {
		if timeout := time.Duration(hook.TimeoutSeconds) * time.Second; timeout != client.Timeout {
			client = &http.Client{Timeout: timeout, Transport: client.Transport}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Lex-Category", n.Category)
	req.Header.Set("X-Lex-Priority", n.Priority)
	req.Header.Set("X-Lex-Delivery", fmt.Sprintf("%d", n.ID))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Lex-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

var priorityRank = map[string]int{
	domain.PriorityLow:    1,
	domain.PriorityMedium: 2,
	domain.PriorityHigh:   3,
}

type filter struct {
	categories  map[string]struct{}
	minPriority int
}

func newFilter(hook config.WebhookConfig) filter {
	f := filter{minPriority: priorityRank[hook.MinPriority]}
	for _, c := range hook.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if f.categories == nil {
			f.categories = map[string]struct{}{}
		}
		f.categories[c] = struct{}{}
	}
	return f
}

func (f filter) match(n domain.Notification) bool {
	if f.categories != nil {
		if _, ok := f.categories[n.Category]; !ok {
			return false
		}
	}
	return priorityRank[n.Priority] >= f.minPriority
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
