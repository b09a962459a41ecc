// Package events carries per-card review progress from live sessions to
// whoever renders them (the UI shell), without coupling the session
// controller to any particular consumer.
package events
