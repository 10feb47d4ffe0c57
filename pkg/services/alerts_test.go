package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/resoldhq/ledgermirror/db"
	"github.com/resoldhq/ledgermirror/pkg/models"
)

func TestClassifyTransition(t *testing.T) {
	tests := []struct {
		name             string
		prev, next       models.Health
		notifyOnWarnings bool
		wantKind         models.AlertKind
		wantAlert        bool
	}{
		{name: "steady green", prev: models.HealthGreen, next: models.HealthGreen},
		{name: "steady red", prev: models.HealthRed, next: models.HealthRed},
		{name: "steady yellow", prev: models.HealthYellow, next: models.HealthYellow, notifyOnWarnings: true},
		{name: "green to red", prev: models.HealthGreen, next: models.HealthRed, wantKind: models.AlertKindDegraded, wantAlert: true},
		{name: "yellow to red", prev: models.HealthYellow, next: models.HealthRed, wantKind: models.AlertKindDegraded, wantAlert: true},
		{name: "red to green", prev: models.HealthRed, next: models.HealthGreen, wantKind: models.AlertKindRecovered, wantAlert: true},
		{name: "red to yellow", prev: models.HealthRed, next: models.HealthYellow, wantKind: models.AlertKindRecovered, wantAlert: true},
		{name: "green to yellow quiet", prev: models.HealthGreen, next: models.HealthYellow},
		{name: "green to yellow notified", prev: models.HealthGreen, next: models.HealthYellow, notifyOnWarnings: true, wantKind: models.AlertKindDegraded, wantAlert: true},
		{name: "yellow to green", prev: models.HealthYellow, next: models.HealthGreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := ClassifyTransition(tt.prev, tt.next, tt.notifyOnWarnings)
			if ok != tt.wantAlert {
				t.Fatalf("ClassifyTransition(%s, %s) alert = %v, want %v", tt.prev, tt.next, ok, tt.wantAlert)
			}
			if kind != tt.wantKind {
				t.Errorf("ClassifyTransition(%s, %s) kind = %s, want %s", tt.prev, tt.next, kind, tt.wantKind)
			}
		})
	}
}

// stubChannel records deliveries and optionally fails every send.
type stubChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []*Alert
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) Send(ctx context.Context, alert *Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, alert)
	return nil
}

func redSnapshot(orgID string) *models.DiagnosticsSnapshot {
	return &models.DiagnosticsSnapshot{
		OrgID:     orgID,
		Overall:   models.HealthRed,
		Connected: false,
		Missing:   []models.Bucket{models.BucketClearing},
	}
}

func greenSnapshot(orgID string) *models.DiagnosticsSnapshot {
	return &models.DiagnosticsSnapshot{
		OrgID:            orgID,
		Overall:          models.HealthGreen,
		Connected:        true,
		MappingsComplete: true,
	}
}

func TestDispatchWritesOneAuditRow(t *testing.T) {
	store := db.NewMockStore()
	ch := &stubChannel{name: "webhook"}
	d := NewAlertDispatcher(store, []Channel{ch}, []string{"owner@example.com"}, "https://app.example.com", time.Minute)

	event, err := d.Dispatch(context.Background(), "org-1", greenSnapshot("org-1"), redSnapshot("org-1"), models.AlertKindDegraded)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if event == nil {
		t.Fatal("no event returned")
	}

	if len(store.AlertEvents) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(store.AlertEvents))
	}
	row := store.AlertEvents[0]
	if row.PrevStatus != models.HealthGreen || row.NextStatus != models.HealthRed {
		t.Errorf("transition = %s -> %s, want green -> red", row.PrevStatus, row.NextStatus)
	}
	if row.Kind != models.AlertKindDegraded {
		t.Errorf("kind = %s, want degraded", row.Kind)
	}

	if len(ch.sent) != 1 {
		t.Fatalf("channel deliveries = %d, want 1", len(ch.sent))
	}
	alert := ch.sent[0]
	if alert.DeepLink != "https://app.example.com/orgs/org-1/diagnostics" {
		t.Errorf("deep link = %q", alert.DeepLink)
	}
	if len(alert.Recipients) != 1 || alert.Recipients[0] != "owner@example.com" {
		t.Errorf("recipients = %v", alert.Recipients)
	}
	if alert.Reason == "" {
		t.Error("alert reason is empty")
	}
}

func TestDispatchRateFloor(t *testing.T) {
	store := db.NewMockStore()
	ch := &stubChannel{name: "webhook"}
	d := NewAlertDispatcher(store, []Channel{ch}, nil, "https://app.example.com", time.Minute)

	if _, err := d.Dispatch(context.Background(), "org-1", greenSnapshot("org-1"), redSnapshot("org-1"), models.AlertKindDegraded); err != nil {
		t.Fatalf("first dispatch failed: %v", err)
	}

	// a second transition inside the floor window is swallowed entirely
	event, err := d.Dispatch(context.Background(), "org-1", redSnapshot("org-1"), greenSnapshot("org-1"), models.AlertKindRecovered)
	if err != nil {
		t.Fatalf("second dispatch failed: %v", err)
	}
	if event != nil {
		t.Error("suppressed dispatch still returned an event")
	}
	if len(store.AlertEvents) != 1 {
		t.Errorf("audit rows = %d, want 1", len(store.AlertEvents))
	}
	if len(ch.sent) != 1 {
		t.Errorf("channel deliveries = %d, want 1", len(ch.sent))
	}
}

func TestDispatchChannelFailureKeepsAuditRow(t *testing.T) {
	store := db.NewMockStore()
	failing := &stubChannel{name: "webhook", err: errors.New("endpoint down")}
	working := &stubChannel{name: "email"}
	d := NewAlertDispatcher(store, []Channel{failing, working}, nil, "https://app.example.com", time.Minute)

	event, err := d.Dispatch(context.Background(), "org-1", greenSnapshot("org-1"), redSnapshot("org-1"), models.AlertKindDegraded)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if event == nil {
		t.Fatal("no event despite a working channel")
	}

	// the audit row exists regardless of delivery outcomes, and the
	// healthy channel still received the alert
	if len(store.AlertEvents) != 1 {
		t.Errorf("audit rows = %d, want 1", len(store.AlertEvents))
	}
	if len(working.sent) != 1 {
		t.Errorf("working channel deliveries = %d, want 1", len(working.sent))
	}
}

func TestDispatchBootstrapPrevDefaultsToGreen(t *testing.T) {
	store := db.NewMockStore()
	d := NewAlertDispatcher(store, nil, nil, "https://app.example.com", time.Minute)

	event, err := d.Dispatch(context.Background(), "org-1", nil, redSnapshot("org-1"), models.AlertKindDegraded)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if event.PrevStatus != models.HealthGreen {
		t.Errorf("prev status = %s, want green", event.PrevStatus)
	}
}
