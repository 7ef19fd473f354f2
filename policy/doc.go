// Package policy decides whether a proposed action may proceed silently or
// needs a human in the loop.  Evaluation is a pure function over the
// cognition output, the ambient context and the loop counter; rules are
// checked in a fixed priority order so operators can reason about which one
// fires first.
package policy
