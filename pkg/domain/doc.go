// Package domain holds the data model shared by the pipeline, the
// orchestration service and the adapters.
//
// JobState is the record every analysis step reads. Steps never mutate it
// directly: they return an Update, and Merge folds the update into the
// running state following the reducer table in Fields. Recommendations and
// issues are appended, every other field is last-write-wins.
package domain
