package order

import (
	"fmt"
	"time"
)

// Address is one postal address of a customer. Names are never nil;
// the remaining parts are nil when the platform omitted them.
type Address struct {
	FirstName string
	LastName  string
	Company   *string
	Address1  *string
	Address2  *string
	Postcode  *string
	City      *string
	State     *string
	Country   *string
}

// CustomerDetails holds contact and address info attached to an order
type CustomerDetails struct {
	ID        int64
	Email     *string
	Phone     *string
	Billing   Address
	Shipping  Address
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerMergePolicy decides how customer details from later deliveries are merged
type CustomerMergePolicy string

const (
	// CustomerFirstWriteWins keeps the details captured by the first delivery
	CustomerFirstWriteWins CustomerMergePolicy = "first_write_wins"
	// CustomerLatestWins overwrites stored details with every delivery
	CustomerLatestWins CustomerMergePolicy = "latest_wins"
)

// ParseCustomerMergePolicy parses a policy name; empty defaults to first_write_wins
func ParseCustomerMergePolicy(s string) (CustomerMergePolicy, error) {
	switch CustomerMergePolicy(s) {
	case "", CustomerFirstWriteWins:
		return CustomerFirstWriteWins, nil
	case CustomerLatestWins:
		return CustomerLatestWins, nil
	default:
		return "", fmt.Errorf("unknown customer merge policy %q", s)
	}
}
