// Package ormtest provides test doubles for the orm package: an in-memory Adapter with call
// recording, a fixture domain (Product, Tag, Person, Address), and spies for logging, metrics,
// and tracing.
package ormtest
