// Package service orchestrates the core components of the matching
// engine: the book, the feed sequencer, the outbox ledger, and the
// market-data producer.
//
// OrderService is the only write entry point into the system. All book
// mutation is serialised here, which is what gives the core its
// single-writer execution model.
package service
