// Package reembed rebuilds the vectors of indexed document units with a new
// or updated embedding model.
//
// Units are re-embedded per tenant in batches, oldest first so their
// recency order survives the rewrite. Embedding calls are retried with
// exponential backoff, progress is reported to a writer, and the index
// metadata is updated to the new dimension and vocabulary once every
// tenant has been rewritten.
package reembed
