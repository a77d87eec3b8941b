package reconciliation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types recorded on reconciliation items.
const (
	TypeDeposit = "deposit"
	TypePayment = "payment"
)

// Where a candidate row came from. Ledger-sourced candidates carry a parent
// entry id and participate in the reconciled-flag cascade; payment-sourced
// candidates do not.
const (
	SourceLedger  = "ledger"
	SourcePayment = "payment"
)

// balanceTolerance is the widest cleared/ending difference still treated as
// balanced (one cent).
var balanceTolerance = decimal.New(1, -2)

// Candidate is one unit of money movement eligible for the current
// reconciliation session: either a payment record tied to the bank account
// or a posted ledger-entry line against the account's linked ledger account.
type Candidate struct {
	ID          string          `json:"transaction_id"`
	Type        string          `json:"transaction_type"`
	Source      string          `json:"source"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	Cleared     bool            `json:"cleared"`
	EntryID     string          `json:"entry_id,omitempty"`
}

// Session holds one reconciliation working set for a single bank account and
// statement period. Company and actor always arrive as explicit values from
// the caller; the engine reads nothing ambient.
type Session struct {
	AccountID        string
	CompanyID        string
	BeginningBalance decimal.Decimal
	BeginningDate    time.Time
	EndingBalance    *decimal.Decimal
	EndingDate       time.Time
	Deposits         []Candidate
	Payments         []Candidate
}

func sumWhere(cs []Candidate, cleared bool) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cs {
		if c.Cleared == cleared {
			total = total.Add(c.Amount)
		}
	}
	return total
}

func sumAll(cs []Candidate) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cs {
		total = total.Add(c.Amount)
	}
	return total
}

// ClearedBalance is the beginning balance plus cleared deposits minus
// cleared payments.
func (s *Session) ClearedBalance() decimal.Decimal {
	return s.BeginningBalance.
		Add(sumWhere(s.Deposits, true)).
		Sub(sumWhere(s.Payments, true))
}

// TotalCashBalance is the beginning balance plus every deposit in the period
// minus every payment in the period, cleared or not.
func (s *Session) TotalCashBalance() decimal.Decimal {
	return s.BeginningBalance.
		Add(sumAll(s.Deposits)).
		Sub(sumAll(s.Payments))
}

// AdjustedBalance backs uncleared movements out of the total cash balance.
// Algebraically identical to ClearedBalance; kept as a separate computation
// so the two can cross-check each other.
func (s *Session) AdjustedBalance() decimal.Decimal {
	return s.TotalCashBalance().
		Sub(sumWhere(s.Deposits, false)).
		Add(sumWhere(s.Payments, false))
}

// IsClearedBalanced reports whether the cleared balance matches the entered
// ending balance within one cent. Always false until an ending balance is
// entered.
func (s *Session) IsClearedBalanced() bool {
	if s.EndingBalance == nil {
		return false
	}
	return s.ClearedBalance().Sub(*s.EndingBalance).Abs().LessThan(balanceTolerance)
}

// IsAdjustedBalanced cross-checks the two balance formulas against each other.
func (s *Session) IsAdjustedBalanced() bool {
	return s.AdjustedBalance().Sub(s.ClearedBalance()).Abs().LessThan(balanceTolerance)
}

// SetCleared flips the cleared flag on the one matching candidate and
// returns its parent ledger-entry id (empty for payment records) so the
// caller can run the reconciled-flag cascade. The second return is false
// when no candidate matches.
func (s *Session) SetCleared(transactionID, transactionType string, cleared bool) (string, bool) {
	var pool []Candidate
	switch transactionType {
	case TypeDeposit:
		pool = s.Deposits
	case TypePayment:
		pool = s.Payments
	default:
		return "", false
	}
	for i := range pool {
		if pool[i].ID == transactionID {
			pool[i].Cleared = cleared
			return pool[i].EntryID, true
		}
	}
	return "", false
}

// ClearedEntryIDs collects the distinct parent entry ids of every cleared
// ledger-sourced candidate, for the batched cascade during finalize.
func (s *Session) ClearedEntryIDs() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, pool := range [][]Candidate{s.Deposits, s.Payments} {
		for _, c := range pool {
			if c.Cleared && c.Source == SourceLedger && c.EntryID != "" && !seen[c.EntryID] {
				seen[c.EntryID] = true
				out = append(out, c.EntryID)
			}
		}
	}
	return out
}

// ClearedItems returns only the cleared candidates from both sets, in
// deposit-then-payment order. Finalize persists exactly this subset.
func (s *Session) ClearedItems() []Candidate {
	out := make([]Candidate, 0)
	for _, pool := range [][]Candidate{s.Deposits, s.Payments} {
		for _, c := range pool {
			if c.Cleared {
				out = append(out, c)
			}
		}
	}
	return out
}

// AllItems returns every candidate from both sets, cleared and uncleared.
// Save-progress persists this full set.
func (s *Session) AllItems() []Candidate {
	out := make([]Candidate, 0, len(s.Deposits)+len(s.Payments))
	out = append(out, s.Deposits...)
	out = append(out, s.Payments...)
	return out
}
