package core

import "time"

// MenuState names a node of the configuration menu
type MenuState string

// Session is the menu navigation stack of an identity.
// The last element is the active state; the stack never becomes empty.
type Session struct {
	Identity  Identity    `json:"identity" gorm:"primaryKey;autoIncrement:false"`
	Stack     []MenuState `json:"stack" gorm:"serializer:json"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Current returns the active state
func (s *Session) Current() MenuState {
	if len(s.Stack) == 0 {
		return ""
	}
	return s.Stack[len(s.Stack)-1]
}

// Push enters a new state keeping the current one as parent
func (s *Session) Push(state MenuState) {
	s.Stack = append(s.Stack, state)
}

// Pop leaves the current state and returns the restored parent.
// The root state is never popped.
func (s *Session) Pop() MenuState {
	if len(s.Stack) > 1 {
		s.Stack = s.Stack[:len(s.Stack)-1]
	}
	return s.Current()
}

// Reset replaces the whole stack with a single root state
func (s *Session) Reset(root MenuState) {
	s.Stack = []MenuState{root}
}
