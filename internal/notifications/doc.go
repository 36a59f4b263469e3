// Package notifications pushes gate events to a phone via ntfy.
//
// The ntfy implementation posts to the topic configured in config.toml and
// degrades to a no-op when no topic is set. Per-event toggles in the
// [notifications] section silence individual event kinds without disabling
// the transport.
package notifications
