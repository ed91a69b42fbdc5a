// Package replication implements the per-queue event log a primary
// ships to replicas (Storage), the tagged request/response types
// exchanged between them (Request, PrimaryRequest, ReplicaRequest), the
// length-prefixed framing (Codec) both sides read and write over a TCP
// connection, and the two drivers built on top of them: Primary dials
// out and ships catch-up ranges, Replica listens and applies them.
package replication
