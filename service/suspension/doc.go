// Package suspension implements the freeze/thaw lifecycle that lets a
// control loop pause at the exact point an action was proposed and resume
// arbitrarily later, possibly in a different process.  It owns the frozen
// snapshots, the append-only audit log of every suspension-related and human
// event, and the translation of a human decision into the loop's next step -
// including the virtual-rejection cycle that feeds a rejection back into
// reasoning as ordinary context.
package suspension
