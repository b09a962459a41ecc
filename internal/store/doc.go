// Package store defines the persistence interfaces of the review engine and
// shared database plumbing. Implementations live in platform packages.
package store
