// Package dispatch contains the campaign dispatcher: the tick entry point
// that finds due campaigns, sends their emails, and advances their
// schedules. The dispatcher holds no state between ticks; every tick
// re-evaluates the due set from storage.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/distlock"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
	"github.com/ignite/campaign-mailer/internal/render"
	"github.com/ignite/campaign-mailer/internal/schedule"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
	"github.com/ignite/campaign-mailer/internal/transport"
)

// Store is the persistence surface the dispatcher needs. All methods are
// safe for concurrent use.
type Store interface {
	// DueCampaigns returns campaigns with status scheduled or active and
	// next_send_at <= now, ordered by next_send_at then id.
	DueCampaigns(ctx context.Context, now time.Time) ([]*domain.Campaign, error)
	// Campaign re-reads one campaign; nil when it no longer exists.
	Campaign(ctx context.Context, id string) (*domain.Campaign, error)
	// UpdateDispatchState persists status, next/last send times and the
	// cumulative counts after a dispatch, but only while the campaign is
	// still scheduled or active; when an operator transition landed first
	// it returns campaign.ErrStaleDispatch and writes nothing.
	UpdateDispatchState(ctx context.Context, c *domain.Campaign) error

	Template(ctx context.Context, id string) (*domain.EmailTemplate, error)
	// ActiveRecipients resolves the campaign's recipient set filtered to
	// currently-active recipients, evaluated live at dispatch time.
	ActiveRecipients(ctx context.Context, campaignID string) ([]*domain.Recipient, error)
	DefaultConfiguration(ctx context.Context) (*domain.EmailConfiguration, error)

	// InsertLog appends one send-attempt row. Log rows are written before
	// any campaign aggregate advances.
	InsertLog(ctx context.Context, entry *domain.EmailLog) error
}

// LeaseManager hands out per-campaign dispatch leases.
type LeaseManager interface {
	CampaignLease(campaignID string) distlock.Lease
}

// Options tune one dispatcher instance.
type Options struct {
	// SendTimeout bounds each individual transport call.
	SendTimeout time.Duration
	// MessageDelay is the pause between recipients of one campaign, to
	// respect provider throttling.
	MessageDelay time.Duration
	// Concurrency is how many campaigns one tick dispatches in parallel.
	// Values below 2 keep the sequential earliest-first order.
	Concurrency int
	// DryRun reports due campaigns without sending or advancing anything.
	DryRun bool
}

// TickResult summarizes one tick.
type TickResult struct {
	Due        int `json:"due"`
	Dispatched int `json:"dispatched"`
	Skipped    int `json:"skipped"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Errors     int `json:"errors"`
}

// Dispatcher processes due campaigns on each Tick call. It is safe to run
// multiple instances against the same store: the per-campaign lease makes
// overlapping ticks skip rather than double-send.
type Dispatcher struct {
	store  Store
	leases LeaseManager
	opts   Options

	// Swappable in tests.
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	transportFor func(cfg *domain.EmailConfiguration) (transport.Transport, error)
	readFile     func(path string) ([]byte, error)
}

// New creates a dispatcher.
func New(store Store, leases LeaseManager, opts Options) *Dispatcher {
	return &Dispatcher{
		store:        store,
		leases:       leases,
		opts:         opts,
		now:          time.Now,
		sleep:        sleepCtx,
		transportFor: transport.New,
		readFile:     os.ReadFile,
	}
}

// Tick runs one dispatch pass: query the due set, then dispatch each
// campaign under its lease. A failure inside one campaign is logged and
// counted but never stops the remaining campaigns.
func (d *Dispatcher) Tick(ctx context.Context) (*TickResult, error) {
	now := d.now().UTC()
	due, err := d.store.DueCampaigns(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("query due campaigns: %w", err)
	}

	res := &TickResult{Due: len(due)}
	if len(due) == 0 {
		return res, nil
	}
	log.Printf("[Dispatch] %d campaign(s) due", len(due))

	if d.opts.DryRun {
		for _, c := range due {
			log.Printf("[Dispatch] dry-run: would dispatch %q (%s), due %s", c.Name, c.ID, c.NextSendAt.Format(time.RFC3339))
		}
		return res, nil
	}

	if d.opts.Concurrency > 1 {
		d.tickParallel(ctx, due, res)
		return res, ctx.Err()
	}

	for _, c := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sent, failed, err := d.dispatchOne(ctx, c.ID)
		d.record(res, nil, c.ID, sent, failed, err)
	}
	return res, nil
}

// tickParallel dispatches independent campaigns concurrently, bounded by
// Options.Concurrency. The per-campaign lease already guarantees no two
// workers touch the same campaign.
func (d *Dispatcher) tickParallel(ctx context.Context, due []*domain.Campaign, res *TickResult) {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, d.opts.Concurrency)
	)
	for _, c := range due {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			sent, failed, err := d.dispatchOne(ctx, id)
			d.record(res, &mu, id, sent, failed, err)
		}(c.ID)
	}
	wg.Wait()
}

// record folds one dispatch outcome into the tick result; mu may be nil on
// the sequential path.
func (d *Dispatcher) record(res *TickResult, mu *sync.Mutex, campaignID string, sent, failed int, err error) {
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	switch {
	case err == errLeaseHeld:
		res.Skipped++
	case err != nil:
		res.Errors++
		logger.Error("campaign dispatch failed", "campaign_id", campaignID, "error", err.Error())
	default:
		res.Dispatched++
		res.Sent += sent
		res.Failed += failed
	}
}

// errLeaseHeld marks lease contention, a normal condition rather than a
// dispatch failure.
var errLeaseHeld = fmt.Errorf("campaign lease held by another dispatcher")

// dispatchOne processes a single campaign under its lease and returns the
// per-dispatch sent/failed counts.
func (d *Dispatcher) dispatchOne(ctx context.Context, campaignID string) (sent, failed int, err error) {
	// A panic in one campaign must not take down the tick (or, on the
	// parallel path, the whole process).
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()

	lease := d.leases.CampaignLease(campaignID)
	ok, err := lease.Acquire(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return 0, 0, errLeaseHeld
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := lease.Release(releaseCtx); rerr != nil {
			logger.Warn("lease release failed", "campaign_id", campaignID, "error", rerr.Error())
		}
	}()

	// Re-read under the lease: another instance may have dispatched and
	// advanced this campaign between the due query and now.
	c, err := d.store.Campaign(ctx, campaignID)
	if err != nil {
		return 0, 0, fmt.Errorf("reload campaign: %w", err)
	}
	if c == nil || !c.Dispatchable() || c.NextSendAt.After(d.now().UTC()) {
		return 0, 0, nil
	}

	tmpl, err := d.store.Template(ctx, c.TemplateID)
	if err != nil {
		return 0, 0, fmt.Errorf("load template: %w", err)
	}
	if tmpl == nil {
		return 0, 0, fmt.Errorf("template %s not found", c.TemplateID)
	}

	cfg, err := d.store.DefaultConfiguration(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load email configuration: %w", err)
	}
	tr, err := d.transportFor(cfg)
	if err != nil {
		return 0, 0, err
	}

	// Live recipient resolution: deactivations and membership changes
	// since the campaign was created take effect here, not via any frozen
	// snapshot.
	recipients, err := d.store.ActiveRecipients(ctx, c.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve recipients: %w", err)
	}

	attachments, names, err := d.loadAttachments(tmpl)
	if err != nil {
		return 0, 0, err
	}

	log.Printf("[Dispatch] campaign %q (%s): %d recipient(s)", c.Name, c.ID, len(recipients))

	var stopped bool
	sent, failed, stopped = d.sendAll(ctx, c, tmpl, cfg, tr, recipients, attachments, names)
	if stopped {
		// A pause or cancel landed mid-dispatch; the operator's transition
		// stands and the schedule is not advanced.
		return sent, failed, nil
	}

	if err := d.advance(ctx, c, sent, failed); err != nil {
		return sent, failed, err
	}
	return sent, failed, nil
}

// sendAll runs the per-recipient loop. Every attempt is logged before the
// caller advances campaign aggregates; a failed send only fails that
// recipient. stopped reports that an operator transition ended the loop
// early, which tells the caller to leave the campaign state alone.
func (d *Dispatcher) sendAll(ctx context.Context, c *domain.Campaign, tmpl *domain.EmailTemplate, cfg *domain.EmailConfiguration, tr transport.Transport, recipients []*domain.Recipient, attachments []transport.Attachment, attachmentNames []string) (sent, failed int, stopped bool) {
	for i, r := range recipients {
		// Cancellation and pause take effect between recipients; the
		// in-flight send always completes first.
		if ctx.Err() != nil {
			logger.Warn("dispatch interrupted", "campaign_id", c.ID, "remaining", fmt.Sprint(len(recipients)-i))
			return sent, failed, false
		}
		if i > 0 && d.opts.MessageDelay > 0 {
			if err := d.sleep(ctx, d.opts.MessageDelay); err != nil {
				return sent, failed, false
			}
		}
		if i > 0 && i%25 == 0 {
			if stop := d.statusChanged(ctx, c.ID); stop {
				logger.Warn("campaign status changed mid-dispatch", "campaign_id", c.ID)
				return sent, failed, true
			}
		}

		vars := render.Vars(r, c.Variables)
		msg := &transport.Message{
			To:          r.Email,
			ToName:      r.DisplayName(),
			FromEmail:   cfg.FromEmail,
			FromName:    cfg.FromName,
			Subject:     render.Render(tmpl.Subject, vars),
			Body:        render.Render(tmpl.Body, vars),
			IsHTML:      tmpl.IsHTML,
			Attachments: attachments,
		}

		sendErr := d.sendWithTimeout(ctx, tr, msg)

		entry := &domain.EmailLog{
			CampaignID:     &c.ID,
			RecipientEmail: r.Email,
			RecipientName:  r.DisplayName(),
			Subject:        msg.Subject,
			Body:           msg.Body,
			Status:         domain.LogSent,
			Attachments:    attachmentNames,
			ConfigName:     tr.Name(),
			SentAt:         d.now().UTC(),
		}
		if sendErr != nil {
			entry.Status = domain.LogFailed
			entry.ErrorMessage = sendErr.Error()
			failed++
			logger.Error("send failed", "campaign_id", c.ID, "recipient_email", r.Email, "error", sendErr.Error())
		} else {
			sent++
			logger.Info("sent", "campaign_id", c.ID, "recipient_email", r.Email)
		}

		if err := d.store.InsertLog(ctx, entry); err != nil {
			// Losing the log row would break log-then-advance; surface
			// loudly but keep going so remaining recipients still send.
			logger.Error("email log insert failed", "campaign_id", c.ID, "recipient_email", r.Email, "error", err.Error())
		}
	}
	return sent, failed, false
}

// sendWithTimeout bounds one transport call so a stalled provider cannot
// hold up the rest of the campaign.
func (d *Dispatcher) sendWithTimeout(ctx context.Context, tr transport.Transport, msg *transport.Message) error {
	if d.opts.SendTimeout <= 0 {
		return tr.Send(ctx, msg)
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()
	return tr.Send(sendCtx, msg)
}

// statusChanged re-reads the campaign and reports whether dispatch should
// stop early (pause or cancel landed mid-dispatch).
func (d *Dispatcher) statusChanged(ctx context.Context, id string) bool {
	c, err := d.store.Campaign(ctx, id)
	if err != nil || c == nil {
		return false
	}
	return c.Status != domain.CampaignScheduled && c.Status != domain.CampaignActive
}

// advance applies the end-of-dispatch state transition: fold this
// dispatch's counts into the cumulative totals, stamp last_sent_at, then
// either schedule the next occurrence or complete the campaign.
func (d *Dispatcher) advance(ctx context.Context, c *domain.Campaign, sent, failed int) error {
	now := d.now().UTC()
	c.SentCount += sent
	c.FailedCount += failed
	c.LastSentAt = &now

	next, ok := schedule.NextWithin(c.NextSendAt.UTC(), c.Interval, c.EndAt)
	if !ok {
		c.Status = domain.CampaignCompleted
		c.NextSendAt = nil
		log.Printf("[Dispatch] campaign %q completed (sent=%d failed=%d)", c.Name, sent, failed)
	} else {
		c.Status = domain.CampaignActive
		c.NextSendAt = &next
		log.Printf("[Dispatch] campaign %q advanced to %s (sent=%d failed=%d)", c.Name, next.Format(time.RFC3339), sent, failed)
	}

	if err := d.store.UpdateDispatchState(ctx, c); err != nil {
		if errors.Is(err, campaign.ErrStaleDispatch) {
			// The guard lost to an operator transition (or a delete); the
			// log rows already record what was sent.
			logger.Warn("campaign state changed during dispatch, advance abandoned", "campaign_id", c.ID)
			return nil
		}
		return fmt.Errorf("advance campaign state: %w", err)
	}
	return nil
}

// loadAttachments materializes template attachments once per dispatch; all
// recipients share the same read-only content.
func (d *Dispatcher) loadAttachments(tmpl *domain.EmailTemplate) ([]transport.Attachment, []string, error) {
	if len(tmpl.Attachments) == 0 {
		return nil, nil, nil
	}
	atts := make([]transport.Attachment, 0, len(tmpl.Attachments))
	names := make([]string, 0, len(tmpl.Attachments))
	for _, a := range tmpl.Attachments {
		content, err := d.readFile(a.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("read attachment %s: %w", a.Filename, err)
		}
		atts = append(atts, transport.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     content,
		})
		names = append(names, a.Filename)
	}
	return atts, names, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
