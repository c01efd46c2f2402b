// Package versions numbers and stores immutable project snapshots.
//
// Numbers are gapless per project: each snapshot takes the previous maximum plus one,
// starting at 1. Numbering is serialized through a ports.Locker keyed by project,
// and the storage layer rejects duplicate numbers as a backstop.
package versions
