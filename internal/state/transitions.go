package state

// moves lists the permitted transitions besides the reset to idle, which is always allowed.
// awaiting_wallet -> awaiting_wallet happens when withdraw is pressed again and re-prompts.
var moves = map[State]map[State]bool{
	StateIdle:           {StateAwaitingWallet: true},
	StateAwaitingWallet: {StateAwaitingWallet: true},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if to == StateIdle {
		return true
	}
	return moves[from][to]
}
