// Package ingestion turns web pages into indexed document units.
//
// The Pipeline drives each document through a fixed sequence of stages:
//
//	Fetching -> Normalizing -> Chunking -> Embedding -> Indexing -> Done
//
// Any stage may move the document to Failed instead. A failed document
// leaves the index untouched; a successful one replaces every record
// previously stored for the same URL and tenant in a single atomic write.
//
// JobRunner runs ingestions asynchronously on a bounded worker pool so
// callers can submit a URL, poll its progress and cancel it.
package ingestion
