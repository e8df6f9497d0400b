// Package renamer renames finished downloads on the Alist filesystem.
//
// The new name comes from a format string with Python-style placeholders:
// {name}, {season}, {episode}, {fansub}, {quality} and {language}, where the
// numeric fields accept a zero-padded width such as {episode:02d}. Versions
// other than 1 append " vN"; the original extension is kept.
//
// Season 0 holds specials and OVAs whose episode numbers rarely line up, so
// their episode number is the count of files already in the directory.
package renamer
