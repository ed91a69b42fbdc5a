// Package spartanq implements a persistent, multi-queue message broker
// with optional primary-to-replica log-shipping replication.
//
// # Overview
//
// A broker process holds a fixed set of named queues (see package
// node), each an independent FIFO-with-visibility-timeout store of
// message.Message values (see package message and package queue).
// Every mutation to a queue (Push, Pop, Requeue, Delete, Gc, Clear)
// is modeled as a queue.Event, the unit both on-disk persistence and
// replication are built from.
//
// # Persistence
//
// A queue's state survives a restart through one of two disciplines
// (package persistence), chosen per process in config.Persistence:
//
//	snapshot  periodic full-state rewrite of each queue's file
//	log       every mutation appended as a length-prefixed event record
//
// A third backend, a SQL store built on bun (one table, one row per
// queue), lives in the sql submodule.
//
// # Replication
//
// A process configured with a replication role (package replication)
// plays one side of a primary-pushes, replica-pulls-nothing protocol
// over TCP: the primary periodically dials every configured replica,
// asks how far it has caught up per queue, and ships the unsent
// Storage range. A replica never originates a connection.
//
// # Background Loops
//
// Broker owns two periodic loops, driven by the same internal.TimerTask
// and internal.LCBase lifecycle discipline used throughout this module:
//
//	GCLoop            sweeps every queue for expired and try-exhausted
//	                  messages, one worker-pool task per queue
//	PersistenceLoop   triggers Manager.Snapshot on the configured
//	                  interval (a no-op in log mode)
//
// and, when configured, a replication.Primary or replication.Replica
// with the same Start(ctx)/Stop(timeout) shape.
//
// # Configuration
//
// Process configuration (package config) is a single YAML file naming
// the queue set, loop intervals, the persistence and replication
// sections, and the access keys an external HTTP layer would enforce.
// cmd/spartanq provides the CLI that loads it.
package spartanq
