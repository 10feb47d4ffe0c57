package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

func TestJournalExportLifecycle(t *testing.T) {
	db := newTestDB(t)

	e := &models.JournalExport{
		ID:             "exp-1",
		OrgID:          "org-1",
		Provider:       "quickbooks",
		PeriodStart:    "2026-03-01",
		PeriodEnd:      "2026-03-31",
		Status:         models.ExportStatusPreview,
		PreviewPayload: `{"lines":[]}`,
	}
	assert.NoError(t, db.CreateJournalExport(e))
	assert.False(t, e.CreatedAt.IsZero())

	got, err := db.GetJournalExport("exp-1")
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, models.ExportStatusPreview, got.Status)
	assert.Equal(t, "2026-03-01", got.PeriodStart)

	// record the outcome of the external call
	e.Status = models.ExportStatusCommitted
	e.ExternalID = "qb-901"
	e.SentPayload = `{"lines":[]}`
	assert.NoError(t, db.UpdateJournalExport(e))

	got, err = db.GetJournalExport("exp-1")
	assert.NoError(t, err)
	assert.Equal(t, models.ExportStatusCommitted, got.Status)
	assert.Equal(t, "qb-901", got.ExternalID)
}

func TestGetJournalExportUnknownReturnsNil(t *testing.T) {
	db := newTestDB(t)

	got, err := db.GetJournalExport("no-such-export")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateJournalExportUnknownFails(t *testing.T) {
	db := newTestDB(t)

	e := &models.JournalExport{ID: "ghost", Status: models.ExportStatusError}
	assert.Error(t, db.UpdateJournalExport(e))
}
