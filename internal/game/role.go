package game

// Role identifies which side of a game a participant plays.
// RoleFirst plays 'X' and moves first; RoleSecond plays 'O'.
type Role byte

const (
	RoleNone Role = iota
	RoleFirst
	RoleSecond
)

// Valid reports whether r is an actual playing role.
func (r Role) Valid() bool {
	return r == RoleFirst || r == RoleSecond
}

// Opponent returns the other playing role. RoleNone has no opponent.
func (r Role) Opponent() Role {
	switch r {
	case RoleFirst:
		return RoleSecond
	case RoleSecond:
		return RoleFirst
	default:
		return RoleNone
	}
}

// Mark returns the board mark for the role.
func (r Role) Mark() byte {
	switch r {
	case RoleFirst:
		return 'X'
	case RoleSecond:
		return 'O'
	default:
		return ' '
	}
}

func (r Role) String() string {
	switch r {
	case RoleFirst:
		return "first"
	case RoleSecond:
		return "second"
	default:
		return "none"
	}
}
