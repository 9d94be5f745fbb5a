// Package session is the core of Beacon: the shared session document model,
// the mutation rules over it, the repository boundary that makes it durable,
// and the service that sequences load -> mutate -> persist -> publish.
//
// Layering:
//   - registry.go holds pure mutation rules; it never touches storage.
//   - Store is the only durability boundary (in-memory and Postgres impls).
//   - Service is the only component allowed to call both the Store and the
//     Broadcaster; everything externally visible goes through it.
package session
