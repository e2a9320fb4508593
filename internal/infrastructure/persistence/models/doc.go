// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free from
// ORM concerns.
//
// Each model has ToDomain and FromDomain mappers. Child collections (service tiers,
// request timelines, listing images) live in their own tables and are preloaded.
// Free-form maps are stored as JSON text.
package models
