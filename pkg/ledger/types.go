package ledger

import "github.com/resoldhq/ledgermirror/pkg/models"

// Account is one entry of the provider's chart of accounts, as cached
// per (org, provider).
type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	Currency string `json:"currency,omitempty"`
	Active   bool   `json:"active"`
}

// wire types for the provider's journal-entry API

type wireLine struct {
	AccountID   string `json:"accountId"`
	Description string `json:"description,omitempty"`
	// Amounts travel as decimal strings; the provider rejects floats.
	Amount  string `json:"amount"`
	Posting string `json:"posting"` // "debit" | "credit"
}

type wireEntry struct {
	Date     string     `json:"txnDate"`
	Currency string     `json:"currency"`
	Memo     string     `json:"privateNote,omitempty"`
	Lines    []wireLine `json:"lines"`
}

type wireEntryResponse struct {
	ID      string    `json:"id"`
	TxnDate string    `json:"txnDate"`
	Entry   wireEntry `json:"entry"`
}

func toWireEntry(e *models.JournalEntry) wireEntry {
	we := wireEntry{
		Date:     e.Date,
		Currency: e.Currency,
		Memo:     e.Memo,
	}
	for _, l := range e.Lines {
		wl := wireLine{
			AccountID:   l.AccountID,
			Description: l.Description,
		}
		if l.Debit != 0 {
			wl.Posting = "debit"
			wl.Amount = models.ToDecimal(l.Debit, e.Currency)
		} else {
			wl.Posting = "credit"
			wl.Amount = models.ToDecimal(l.Credit, e.Currency)
		}
		we.Lines = append(we.Lines, wl)
	}
	return we
}
