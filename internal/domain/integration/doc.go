// Package integration contains the Integration bounded context.
// This context manages the connection between the local catalog and the remote
// e-commerce catalog.
//
// Key concepts:
//   - CatalogPlatform: Port interface for reading and writing the remote catalog
//   - ExistingProduct: Snapshot of a remote product used to preserve remote-only state
//   - ProductSetVariables: The upsert payload built from a local product
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
