// Package role names the two halves of a split keyboard.
package role

// Role is the physical half a firmware image is running on.
type Role uint8

const (
	Left Role = iota
	Right
)

func (r Role) String() string {
	if r == Right {
		return "right"
	}
	return "left"
}

// FromLevel maps a strap level to a role. highIsLeft selects the board
// polarity: when true a high strap means the left half.
func FromLevel(high, highIsLeft bool) Role {
	if high == highIsLeft {
		return Left
	}
	return Right
}
