package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/resoldhq/ledgermirror/db"
	"github.com/resoldhq/ledgermirror/pkg/models"
	"github.com/resoldhq/ledgermirror/pkg/utils"
)

// ClassifyTransition decides whether a health edge warrants an alert.
// Entering red is always degraded; leaving red is always recovered.
// Entering yellow from green is degraded only when notifyOnWarnings is
// set. Anything else, including no change, is no alert.
func ClassifyTransition(prev, next models.Health, notifyOnWarnings bool) (models.AlertKind, bool) {
	if prev == next {
		return "", false
	}
	if next == models.HealthRed && prev != models.HealthRed {
		return models.AlertKindDegraded, true
	}
	if prev == models.HealthRed && next != models.HealthRed {
		return models.AlertKindRecovered, true
	}
	if next == models.HealthYellow && prev == models.HealthGreen && notifyOnWarnings {
		return models.AlertKindDegraded, true
	}
	return "", false
}

// Alert is the payload handed to every channel.
type Alert struct {
	Subject    string           `json:"subject"`
	Reason     string           `json:"reason"`
	Kind       models.AlertKind `json:"kind"`
	OrgID      string           `json:"orgId"`
	DeepLink   string           `json:"deepLink"`
	Recipients []string         `json:"recipients"`
}

// Channel delivers one alert over one transport. Failures are isolated
// per channel.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
}

// AlertDispatcher turns detected health transitions into at most one
// audit row plus best-effort channel deliveries.
type AlertDispatcher struct {
	store        db.Store
	channels     []Channel
	recipients   []string
	deepLinkBase string
	minInterval  time.Duration

	now func() time.Time
}

func NewAlertDispatcher(store db.Store, channels []Channel, recipients []string, deepLinkBase string, minInterval time.Duration) *AlertDispatcher {
	if minInterval <= 0 {
		minInterval = time.Minute
	}
	return &AlertDispatcher{
		store:        store,
		channels:     channels,
		recipients:   recipients,
		deepLinkBase: deepLinkBase,
		minInterval:  minInterval,
		now:          time.Now,
	}
}

// Dispatch handles one classified transition: it applies the per-org
// rate floor, writes exactly one AlertEvent, and fans out to every
// channel independently. Channel failures are collected and logged;
// none of them fails the dispatch.
func (d *AlertDispatcher) Dispatch(ctx context.Context, orgID string, prev, next *models.DiagnosticsSnapshot, kind models.AlertKind) (*models.AlertEvent, error) {
	latest, err := d.store.GetLatestAlertEvent(orgID)
	if err != nil {
		return nil, err
	}
	if latest != nil && d.now().Sub(latest.CreatedAt) < d.minInterval {
		log.Info().Str("org", orgID).Msg("alert suppressed by rate floor")
		return nil, nil
	}

	alert := d.buildAlert(orgID, next, kind)

	prevStatus := models.HealthGreen
	if prev != nil {
		prevStatus = prev.Overall
	}
	event := &models.AlertEvent{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		PrevStatus: prevStatus,
		NextStatus: next.Overall,
		Kind:       kind,
		Recipients: alert.Recipients,
		Reason:     alert.Reason,
		CreatedAt:  d.now().UTC(),
	}

	// The audit row is written regardless of how many channels succeed.
	if err := d.store.AppendAlertEvent(event); err != nil {
		return nil, fmt.Errorf("failed to record alert event: %w", err)
	}

	var (
		mu          sync.Mutex
		channelErrs []error
		wg          sync.WaitGroup
	)
	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, alert); err != nil {
				cerr := &models.AlertChannelError{Channel: ch.Name(), Err: err}
				log.Error().Err(cerr).Str("org", orgID).Msg("alert channel delivery failed")
				mu.Lock()
				channelErrs = append(channelErrs, cerr)
				mu.Unlock()
			}
		}(ch)
	}
	wg.Wait()

	log.Info().
		Str("org", orgID).
		Str("kind", string(kind)).
		Int("channels", len(d.channels)).
		Int("failed", len(channelErrs)).
		Msg("alert dispatched")

	return event, nil
}

func (d *AlertDispatcher) buildAlert(orgID string, next *models.DiagnosticsSnapshot, kind models.AlertKind) *Alert {
	var subject string
	var reasons []string

	switch kind {
	case models.AlertKindRecovered:
		subject = "Accounting sync recovered"
		reasons = append(reasons, "The connection to your accounting provider is healthy again.")
	default:
		subject = "Accounting sync needs attention"
		if !next.Connected {
			reasons = append(reasons, "The connection to your accounting provider is down or expired.")
		}
		if len(next.Missing) > 0 {
			names := make([]string, len(next.Missing))
			for i, b := range next.Missing {
				names[i] = utils.Capitalize(strings.ReplaceAll(string(b), "_", " "))
			}
			reasons = append(reasons, "Unmapped accounts: "+strings.Join(names, ", ")+".")
		}
		reasons = append(reasons, next.Warnings...)
	}

	return &Alert{
		Subject:    subject,
		Reason:     strings.Join(reasons, " "),
		Kind:       kind,
		OrgID:      orgID,
		DeepLink:   fmt.Sprintf("%s/orgs/%s/diagnostics", d.deepLinkBase, orgID),
		Recipients: d.recipients,
	}
}

// WebhookChannel POSTs the alert as JSON to a configured URL.
type WebhookChannel struct {
	URL    string
	client *http.Client
}

func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		URL:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Send(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// EmailSender is whatever mail transport the host environment provides;
// only the decision to send lives here.
type EmailSender interface {
	SendMail(ctx context.Context, recipients []string, subject, body string) error
}

// EmailChannel hands the alert to the host's mail transport.
type EmailChannel struct {
	sender EmailSender
}

func NewEmailChannel(sender EmailSender) *EmailChannel {
	return &EmailChannel{sender: sender}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Send(ctx context.Context, alert *Alert) error {
	body := alert.Reason + "\n\n" + alert.DeepLink
	return e.sender.SendMail(ctx, alert.Recipients, alert.Subject, body)
}
