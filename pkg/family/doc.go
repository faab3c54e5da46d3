/*
Package family resolves generic netlink family names to their kernel
assigned numeric identifiers by querying the nlctrl control family.

Family identifiers are allocated dynamically when a kernel module
registers its family, so they can differ between machines and between
boots of the same machine. This package deliberately performs no caching:
a family can be unregistered and re-registered with a different
identifier at any time, and a stale identifier silently addresses the
wrong family. Callers that know their target family is pinned for the
lifetime of a connection may cache the resolved identifier themselves.
*/
package family
