// Package journal persists the access log in SQLite.
//
// The journal is the durable copy of the tracker's log: entries are written
// here before they become visible in memory, and the daemon replays the table
// at startup to rebuild occupancy. Rows are never updated or deleted.
//
// The schema is managed with golang-migrate using migrations embedded in the
// binary, so a fresh state directory and an upgraded one converge on the same
// layout.
package journal
