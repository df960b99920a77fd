package duel

// Card is the per-card aggregate of attribute histories. Every attribute the
// simulator can reveal or change is its own Sequence, so stepping the duel
// in either direction touches only the attributes a message mentioned.
// Counter cells are created lazily the first time a counter type is observed
// on the card.
type Card struct {
	Pos       *Sequence[uint32] // Position
	Code      *Sequence[uint32] // Card code
	Alias     *Sequence[uint32] // Alias card code
	Type      *Sequence[uint32] // Type (Monster, Spell, Trap, ...)
	Level     *Sequence[int32]
	Rank      *Sequence[uint32]
	Attribute *Sequence[uint32]
	Race      *Sequence[uint32]
	Atk       *Sequence[int32]
	Def       *Sequence[int32]
	BaseAtk   *Sequence[int32]
	BaseDef   *Sequence[int32]
	Owner     *Sequence[uint32] // Original owner
	LScale    *Sequence[uint32] // Left pendulum scale
	RScale    *Sequence[uint32] // Right pendulum scale
	Links     *Sequence[uint32] // Link arrows
	Counters  map[uint32]*Sequence[uint32]
}

// NewCard creates a card with every attribute at its sentinel and no
// counters.
func NewCard() *Card {
	return &Card{
		Pos:       newU32Cell(),
		Code:      newU32Cell(),
		Alias:     newU32Cell(),
		Type:      newU32Cell(),
		Level:     newI32Cell(),
		Rank:      newU32Cell(),
		Attribute: newU32Cell(),
		Race:      newU32Cell(),
		Atk:       newI32Cell(),
		Def:       newI32Cell(),
		BaseAtk:   newI32Cell(),
		BaseDef:   newI32Cell(),
		Owner:     newU32Cell(),
		LScale:    newU32Cell(),
		RScale:    newU32Cell(),
		Links:     newU32Cell(),
		Counters:  make(map[uint32]*Sequence[uint32]),
	}
}

// CounterCount returns the current count for a counter type, zero if the
// card has never carried that type.
func (c *Card) CounterCount(counterType uint32) uint32 {
	if cell, ok := c.Counters[counterType]; ok {
		return cell.Get()
	}
	return 0
}
