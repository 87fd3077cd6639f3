// Package testutil provides shared test helpers: a deterministic fake clock
// for timer driven components and fluent builders for agent configs and
// events. Internal only; production code must not depend on it.
package testutil
