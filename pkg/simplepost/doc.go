// Package simplepost maintains a post aggregate spread across two independent
// stores: a MetadataStore holding post rows, image attachment rows and ordered
// body paragraphs, and a BlobStore holding the image bytes.
//
// The Service creates, updates and deletes the aggregate as a unit. It derives
// unique slugs from titles, reconciles attached images by URL, replaces body
// paragraphs wholesale and removes orphaned blobs on every mutation path.
// There is no transaction spanning both stores: a mutation that fails part way
// leaves the completed steps in place and reports which phase failed, and
// per-image cleanup failures are collected into a MutationReport and surfaced
// as a *PartialFailure rather than rolled back.
//
// Store implementations live in subpackages: repo/memory, repo/postgres and
// repo/sqlite for metadata, storage/memory, storage/fs, storage/s3 and
// storage/gcs for blobs. lock/memory and lock/redis serialize mutations per
// slug.
package simplepost
