// Package registry owns the catalog of registered services.
//
// The registry maps service IDs to service definitions, allocates
// collision-free IDs, and reconciles the in-memory catalog with a durable
// JSON store at process start and stop.
//
// Components:
//   - Registry: Mutex-guarded CRUD over the service map
//   - FileStore: JSON document on disk, atomic replace on save
//   - Seeder: Creates services from definition files on a fresh deployment
//
// Persistence Rules:
//   - A missing store is an empty registry, not an error
//   - A corrupt store (or any invalid entry) restores as empty, never partial
//   - Save failures are logged; they never stop a running process
//
// IDs:
//   - 6 random characters from [A-Za-z0-9]
//   - At most 100 draws per allocation, then ErrGenerationExhausted
//
// Example Usage:
//
//	store := registry.NewFileStore("data/db/services.json")
//	reg := registry.New(logger)
//	reg.Restore(store)
//	id, err := reg.Create(svc)
//	updated, err := reg.Update(id, patch)
//	removed, err := reg.Remove(id)
//	reg.Persist(store)
package registry
