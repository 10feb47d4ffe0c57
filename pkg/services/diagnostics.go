package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/resoldhq/ledgermirror/db"
	"github.com/resoldhq/ledgermirror/pkg/ledger"
	"github.com/resoldhq/ledgermirror/pkg/models"
	"github.com/resoldhq/ledgermirror/pkg/utils"
)

// ReduceHealth folds the three independent facts into the tri-state.
// Posting history deliberately plays no part: "is configured correctly"
// is orthogonal to "did the last post succeed".
func ReduceHealth(connected bool, missingCount, warningsCount int) models.Health {
	if !connected || missingCount > 0 {
		return models.HealthRed
	}
	if warningsCount > 0 {
		return models.HealthYellow
	}
	return models.HealthGreen
}

// EvaluateOptions carries the caller-supplied snapshot extras and the
// explicit persistence flag. Evaluation never persists on its own.
type EvaluateOptions struct {
	Save              bool
	LastTestForwardID string
	LastTestReverseID string
	LastVerifiedAt    *time.Time
}

// Diagnostician evaluates an org's integration health and, when asked
// to persist, detects transitions against the previously saved
// snapshot.
type Diagnostician struct {
	store            db.Store
	client           ledger.Client
	provider         string
	dispatcher       *AlertDispatcher
	notifyOnWarnings bool

	// accounts are cached per (org, provider) and refreshed explicitly
	cacheMu  sync.Mutex
	accounts map[string][]ledger.Account

	// orgLocks serialize the snapshot check-then-act per org so two
	// concurrent evaluations cannot both fire the same alert
	orgLocks sync.Map
}

func NewDiagnostician(store db.Store, client ledger.Client, provider string, dispatcher *AlertDispatcher, notifyOnWarnings bool) *Diagnostician {
	return &Diagnostician{
		store:            store,
		client:           client,
		provider:         provider,
		dispatcher:       dispatcher,
		notifyOnWarnings: notifyOnWarnings,
		accounts:         make(map[string][]ledger.Account),
	}
}

func (d *Diagnostician) lockFor(orgID string) *sync.Mutex {
	lock, _ := d.orgLocks.LoadOrStore(orgID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// CachedAccounts returns the org's cached chart of accounts, fetching
// it on first use. Refresh is explicit; unrelated writes never
// invalidate the cache.
func (d *Diagnostician) CachedAccounts(ctx context.Context, orgID string, refresh bool) ([]ledger.Account, error) {
	key := orgID + "|" + d.provider

	d.cacheMu.Lock()
	cached, ok := d.accounts[key]
	d.cacheMu.Unlock()
	if ok && !refresh {
		return cached, nil
	}

	accounts, err := d.client.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	d.cacheMu.Lock()
	d.accounts[key] = accounts
	d.cacheMu.Unlock()
	return accounts, nil
}

// Evaluate computes a fresh snapshot. It is idempotent and safe to run
// repeatedly; persistence and alerting happen only when opts.Save is
// set, under the per-org guard.
func (d *Diagnostician) Evaluate(ctx context.Context, orgID string, opts EvaluateOptions) (*models.DiagnosticsSnapshot, error) {
	lock := d.lockFor(orgID)
	lock.Lock()
	defer lock.Unlock()

	connected := false
	var expiresInSec int64
	status, err := d.client.ConnectionStatus(ctx)
	if err != nil {
		// a provider we cannot reach is a disconnected provider; the
		// evaluation itself must still complete
		log.Warn().Err(err).Str("org", orgID).Msg("connection status check failed")
	} else {
		connected = status.Connected
		expiresInSec = status.ExpiresInSec
	}

	mappings, err := d.store.GetAccountMappings(orgID, d.provider)
	if err != nil {
		return nil, err
	}
	missing := models.MissingBuckets(mappings)

	var warnings []string
	if connected {
		warnings, err = d.typeWarnings(ctx, orgID, mappings)
		if err != nil {
			log.Warn().Err(err).Str("org", orgID).Msg("account type check skipped")
		}
	}

	snapshot := &models.DiagnosticsSnapshot{
		OrgID:             orgID,
		Provider:          d.provider,
		Overall:           ReduceHealth(connected, len(missing), len(warnings)),
		Connected:         connected,
		ExpiresInSec:      expiresInSec,
		MappingsComplete:  len(missing) == 0,
		WarningsCount:     len(warnings),
		Missing:           missing,
		Warnings:          warnings,
		LastTestForwardID: opts.LastTestForwardID,
		LastTestReverseID: opts.LastTestReverseID,
		LastVerifiedAt:    opts.LastVerifiedAt,
		EvaluatedAt:       time.Now().UTC(),
	}

	if !opts.Save {
		return snapshot, nil
	}

	prev, err := d.store.GetDiagnostics(orgID)
	if err != nil {
		return nil, err
	}

	// carry test/verification ids forward when the caller did not
	// supply fresh ones
	if prev != nil {
		if snapshot.LastTestForwardID == "" {
			snapshot.LastTestForwardID = prev.LastTestForwardID
		}
		if snapshot.LastTestReverseID == "" {
			snapshot.LastTestReverseID = prev.LastTestReverseID
		}
		if snapshot.LastVerifiedAt == nil {
			snapshot.LastVerifiedAt = prev.LastVerifiedAt
		}
	}

	if err := d.store.UpsertDiagnostics(snapshot); err != nil {
		return nil, err
	}

	if prev != nil && d.dispatcher != nil {
		if kind, ok := ClassifyTransition(prev.Overall, snapshot.Overall, d.notifyOnWarnings); ok {
			if _, err := d.dispatcher.Dispatch(ctx, orgID, prev, snapshot, kind); err != nil {
				// alert failures never fail the save
				log.Error().Err(err).Str("org", orgID).Msg("alert dispatch failed")
			}
		}
	}

	return snapshot, nil
}

// typeWarnings compares each mapping against the cached chart of
// accounts. A mismatch is a warning; postings are still allowed.
func (d *Diagnostician) typeWarnings(ctx context.Context, orgID string, mappings []*models.AccountMapping) ([]string, error) {
	accounts, err := d.CachedAccounts(ctx, orgID, false)
	if err != nil {
		return nil, err
	}
	byID := lo.SliceToMap(accounts, func(a ledger.Account) (string, ledger.Account) {
		return a.ID, a
	})

	var warnings []string
	for _, m := range mappings {
		account, ok := byID[m.ExternalAccountID]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s is mapped to account %s which no longer exists in the chart of accounts.",
				bucketDisplay(m.Bucket), m.ExternalAccountID))
			continue
		}
		if !models.IsRecommendedType(m.Bucket, account.Type, account.Subtype) {
			warnings = append(warnings, fmt.Sprintf("%s is mapped to %q (%s), which is not a recommended account type.",
				bucketDisplay(m.Bucket), account.Name, account.Type))
		}
	}
	return warnings, nil
}

func bucketDisplay(b models.Bucket) string {
	return utils.Capitalize(strings.ReplaceAll(string(b), "_", " "))
}
