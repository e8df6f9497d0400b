// Package download submits new resources to Alist and follows the resulting
// tasks to completion.
//
// Manager is the monitor's sink. It groups a batch by save path
// (<base>/<anime>/Season N), makes sure each folder exists, submits one
// offline download per group, records every task and only then marks the
// titles seen. A failed group stays unseen and is retried on the next poll.
//
// Watcher polls the Alist task queues on a cron schedule. A download that
// succeeds moves to the transfer phase; the matching transfer task is the
// one targeting the record's save path that no other record has claimed.
// When the transfer succeeds the file is renamed (if enabled) and a
// completion notification is sent. Cloud downloaders store files directly,
// so their records complete when the download task does.
package download
