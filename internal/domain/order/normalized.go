package order

// NormalizedOrder is one webhook payload after normalization
type NormalizedOrder struct {
	Fields       Fields
	CurrencyCode string
	Customer     CustomerDetails
	LineItems    []LineItem
	Tags         string
	State        State
}

// UnknownSKUPolicy decides what reconciliation does with a line item without SKU
type UnknownSKUPolicy string

const (
	// UnknownSKURollback aborts and rolls back the whole reconciliation
	UnknownSKURollback UnknownSKUPolicy = "rollback"
	// UnknownSKUCommitPartial aborts but keeps what was written before the item:
	// order fields, the cleared rows and rows of earlier items. Tags,
	// warehouse and payment date are not touched.
	UnknownSKUCommitPartial UnknownSKUPolicy = "commit_partial"
	// UnknownSKUPlaceholder books the item against the unknown-package placeholder
	UnknownSKUPlaceholder UnknownSKUPolicy = "placeholder"
)

// IsValid returns true if the policy is known
func (p UnknownSKUPolicy) IsValid() bool {
	switch p {
	case UnknownSKURollback, UnknownSKUCommitPartial, UnknownSKUPlaceholder:
		return true
	default:
		return false
	}
}
