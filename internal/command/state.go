// Package command ведёт подключение наблюдателя по жизненному циклу и передаёт
// его текстовые команды движку очередей.
package command

import "fmt"

// State состояние жизненного цикла подключения.
type State int

const (
	StateConnected State = iota
	StateWatching
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateWatching:
		return "watching"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions единственное место, где решается, какие переходы допустимы.
var transitions = map[State][]State{
	StateConnected: {StateWatching, StateClosed},
	StateWatching:  {StateClosed},
}

// CanTransition сообщает, можно ли перейти из s в next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
