// Package store persists mikanarr state in SQLite.
//
// Two tables back the daemon:
//
//   - seen_resources: titles already submitted. The monitor consults Exists
//     before extraction; the download manager calls MarkSeen after a
//     successful submission.
//   - task_records: one row per submitted offline-download task with the
//     resource metadata, so the task watcher can follow it through transfer
//     and rename the finished file.
//
// The schema is embedded and versioned. A version mismatch refuses to open;
// there are no migrations, delete the database to start over.
package store
