// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel shared by every table with a snowflake primary key
// - shop.go: shops
// - order.go: orders, order rows, order tag links and reconcile keys
// - customer.go: customer details
// - reference.go: currencies, packages and order tags
package models
