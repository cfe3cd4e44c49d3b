// Package store provides SQLite-backed persistence for the enhanced storage
// tier.
//
// Two tables back the preference stores:
//   - profile_fields: one row per top-level profile field, value as canonical JSON
//   - favourites: one row per favourite key, item as canonical JSON
//
// # Ordering
//
// Favourites are listed by rank DESC, key ASC. A new key takes the next rank
// so it lists first; rewriting an existing key keeps its rank so it stays in
// place. Wall-clock timestamps are stored inside the item JSON only and never
// drive ordering.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schema upgrades are tracked with PRAGMA user_version.
package store
