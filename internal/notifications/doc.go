// Package notifications delivers optional push notifications for install
// outcomes through an ntfy topic. Without a configured topic every publish
// is a silent noop.
package notifications
