// Package access implements principal identity, tag-pattern access rules
// and the authorization engine that gates every read, write, link and
// attach against them.
//
// Authorization is fail-closed: a principal with no matching rule is
// denied, and an unknown principal is denied. Rules are additive only;
// the union of actions across every rule selecting the principal (by id
// or role) and covering at least one target tag decides the outcome.
// The admin role bypasses rule evaluation entirely.
//
// Principals and rules persist in the store under acl/ keys as JSON
// records mirrored into an in-memory cache. Presence is advisory live
// state (offline, online, writing) and is never persisted.
package access
