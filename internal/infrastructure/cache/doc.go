// Package cache provides the webhook delivery ledger: a short-lived record of
// delivery IDs that were reconciled successfully, used to acknowledge
// platform retries without touching the database.
package cache
