// Package alist is the client for the Alist file-management API.
//
// It submits offline-download tasks, lists and cancels tasks, and performs
// the handful of filesystem operations the pipeline needs (list, rename,
// mkdir, existence checks and uploads).
//
// Every response carries a {code, message, data} envelope. A non-2xx HTTP
// status is reported as *TransportError (services.ErrTransport); an envelope
// code other than 200 is reported as *APIError (services.ErrApplication).
//
// 115 Cloud only accepts magnet links, so its
// torrent URLs are converted before submission: the .torrent is fetched into a
// temporary directory, parsed with anacrolix/torrent metainfo and replaced by
// its magnet URI. The temporary directory is removed on every path.
package alist
