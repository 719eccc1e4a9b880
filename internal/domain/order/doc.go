// Package order contains the order ingestion bounded context.
// It models orders received from an external commerce platform and the
// reference data (currencies, packages, tags) they point at.
//
// Key concepts:
//   - Shop: tenant that sends webhooks, owns the shared signing secret
//   - Order: aggregate keyed by (shop, external order id, test flag)
//   - OrderRow / TagLink: owned collections, replaced on every reconciliation
//   - CustomerDetails: contact and address info, merged per CustomerMergePolicy
//   - NormalizedOrder: the typed form of one webhook payload
//
// Design Pattern: Ports & Adapters
//   - Ports (repositories, ReconcileScope, WarehouseRecommender, PayloadArchive) live here
//   - Adapters are in the infrastructure layer
package order
