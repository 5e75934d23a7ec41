package entity

// Seat is a participant slot in one game session. The first seat plays
// X, the second O; the assignment never changes for the session's life.
// ConnID is the transport handle currently bound to the seat and is
// rebound on reconnect.
type Seat struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Mark     string `json:"mark"`
	ConnID   string `json:"-"`
}

// Player is a persisted profile keyed by stable identity.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Draws  int    `json:"draws"`
}
