package duel

import "errors"

// Location is the simulator's location bitmask. The numeric values are part
// of the wire contract and must not change.
type Location uint32

const (
	LocationMainDeck     Location = 0x01
	LocationHand         Location = 0x02
	LocationMonsterZone  Location = 0x04
	LocationSpellZone    Location = 0x08
	LocationGraveyard    Location = 0x10
	LocationBanished     Location = 0x20
	LocationExtraDeck    Location = 0x40
	LocationOverlay      Location = 0x80
	LocationOnField      Location = 0x0c
	LocationFieldZone    Location = 0x100
	LocationPendulumZone Location = 0x200
)

// Card position bitmask, shared with the simulator.
const (
	PositionFaceUpAttack    uint32 = 0x1
	PositionFaceDownAttack  uint32 = 0x2
	PositionFaceUpDefense   uint32 = 0x4
	PositionFaceDownDefense uint32 = 0x8
	PositionFaceUp          uint32 = 0x5
	PositionFaceDown        uint32 = 0xa
)

// Sentinel errors surfaced by board lookups and handlers. Any of them aborts
// the current step with the board untouched; the session is expected to be
// torn down by the caller.
var (
	ErrUnknownLocation  = errors.New("location does not name a pile")
	ErrMissingCard      = errors.New("no card at place")
	ErrIllegalMove      = errors.New("move source equals destination")
	ErrMalformedMessage = errors.New("malformed message")
)

const fieldLocations = LocationMonsterZone | LocationSpellZone |
	LocationOverlay | LocationOnField | LocationFieldZone | LocationPendulumZone

// IsPileLocation reports whether the location addresses one of the five
// ordered piles rather than a field slot. This is the sole source of truth
// for container selection.
func IsPileLocation(loc Location) bool {
	return loc&fieldLocations == 0
}

// Place identifies a card's home: a pile index or a field slot, possibly
// inside an overlay stack. OverlaySequence is negative for non-overlay
// slots. Place is comparable and used directly as a map key.
type Place struct {
	Controller      uint8
	Location        Location
	Sequence        uint32
	OverlaySequence int32
}

// IsPile reports whether the place addresses a pile.
func (p Place) IsPile() bool {
	return IsPileLocation(p.Location)
}

// TempPlace keys the temporal-removed container: the state at which a card
// left existence plus the place it left from.
type TempPlace struct {
	State uint32
	Place
}
