package duel

import (
	"fmt"

	"go.uber.org/zap"
)

// Disabled-zone table layout, per controller: monster zones 0..6 (main five,
// two extra monster zones), spell zones 0..5 (field spell on 5), pendulum
// zones 0..1.
const (
	disabledMonsterZones  = 7
	disabledSpellZones    = 6
	disabledPendulumZones = 2
	disabledPerController = disabledMonsterZones + disabledSpellZones + disabledPendulumZones
	disabledZoneCount     = 2 * disabledPerController
)

// Board is the explorable view of one duel. It owns the ten piles, the
// field-slot map (including overlay stacks), the fixed-domain disabled-zone
// table, the temporal-removed container, the per-player scalars and the
// message log with its cursor. All methods are single-threaded; callers that
// share a Board across goroutines must serialize access.
type Board struct {
	logger *zap.Logger

	turn       uint32
	playerLP   [2]*Sequence[uint32]
	turnPlayer *Sequence[uint32]
	phase      *Sequence[uint32]

	// Piles, index 0 is the pile bottom; for hand, index 0 is leftmost.
	deck      [2][]*Card
	hand      [2][]*Card
	grave     [2][]*Card
	banished  [2][]*Card
	extraDeck [2][]*Card

	// Cards on the field, overlay stacks included. Monster zone sequences 5
	// and 6 are the extra monster zones; spell zone sequence 5 is the field
	// spell slot.
	fieldZones map[Place]*Card

	// Which zones are blocked by card effects. The domain is fixed at
	// construction and never changes.
	disabledZones [disabledZoneCount]*Sequence[bool]

	// Cards that left existence at a known state, keyed by that state and
	// the place they left from.
	tempCards map[TempPlace]*Card

	realtime       bool // appending new history vs re-walking recorded history
	advancing      bool // direction of the step being interpreted
	state          uint32
	processedState uint32
	msgs           []Message
}

// NewBoard creates an empty board. The logger may be nil.
func NewBoard(logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Board{
		logger:     logger,
		turnPlayer: newU32Cell(),
		phase:      newU32Cell(),
		fieldZones: make(map[Place]*Card),
		tempCards:  make(map[TempPlace]*Card),
	}
	b.playerLP[0] = newU32Cell()
	b.playerLP[1] = newU32Cell()
	for i := range b.disabledZones {
		b.disabledZones[i] = newBoolCell()
	}
	return b
}

// disabledZoneIndex maps a zone place onto the flat table, reporting false
// for places outside the fixed domain.
func disabledZoneIndex(p Place) (int, bool) {
	if p.Controller > 1 || p.OverlaySequence >= 0 {
		return 0, false
	}
	base := int(p.Controller) * disabledPerController
	switch p.Location {
	case LocationMonsterZone:
		if p.Sequence >= disabledMonsterZones {
			return 0, false
		}
		return base + int(p.Sequence), true
	case LocationSpellZone:
		if p.Sequence >= disabledSpellZones {
			return 0, false
		}
		return base + disabledMonsterZones + int(p.Sequence), true
	case LocationPendulumZone:
		if p.Sequence >= disabledPendulumZones {
			return 0, false
		}
		return base + disabledMonsterZones + disabledSpellZones + int(p.Sequence), true
	}
	return 0, false
}

// disabledZonePlace is the inverse of disabledZoneIndex.
func disabledZonePlace(i int) Place {
	p := Place{Controller: uint8(i / disabledPerController), OverlaySequence: -1}
	rest := i % disabledPerController
	switch {
	case rest < disabledMonsterZones:
		p.Location = LocationMonsterZone
		p.Sequence = uint32(rest)
	case rest < disabledMonsterZones+disabledSpellZones:
		p.Location = LocationSpellZone
		p.Sequence = uint32(rest - disabledMonsterZones)
	default:
		p.Location = LocationPendulumZone
		p.Sequence = uint32(rest - disabledMonsterZones - disabledSpellZones)
	}
	return p
}

// pile returns the pile slice for the named kind.
func (b *Board) pile(controller uint8, location Location) (*[]*Card, error) {
	if controller > 1 {
		return nil, fmt.Errorf("controller %d: %w", controller, ErrMalformedMessage)
	}
	switch location {
	case LocationMainDeck:
		return &b.deck[controller], nil
	case LocationHand:
		return &b.hand[controller], nil
	case LocationGraveyard:
		return &b.grave[controller], nil
	case LocationBanished:
		return &b.banished[controller], nil
	case LocationExtraDeck:
		return &b.extraDeck[controller], nil
	}
	return nil, fmt.Errorf("location %#x: %w", uint32(location), ErrUnknownLocation)
}

// cardAt returns the card at a place, from its pile or from the field map.
func (b *Board) cardAt(place Place) (*Card, error) {
	if place.IsPile() {
		pile, err := b.pile(place.Controller, place.Location)
		if err != nil {
			return nil, err
		}
		if int(place.Sequence) >= len(*pile) {
			return nil, fmt.Errorf("pile index %d of %d: %w", place.Sequence, len(*pile), ErrMissingCard)
		}
		return (*pile)[place.Sequence], nil
	}
	card, ok := b.fieldZones[place]
	if !ok {
		return nil, fmt.Errorf("field slot %+v: %w", place, ErrMissingCard)
	}
	return card, nil
}

func insertCard(pile *[]*Card, index uint32, card *Card) {
	*pile = append(*pile, nil)
	copy((*pile)[index+1:], (*pile)[index:])
	(*pile)[index] = card
}

func eraseCard(pile *[]*Card, index uint32) {
	copy((*pile)[index:], (*pile)[index+1:])
	(*pile)[len(*pile)-1] = nil
	*pile = (*pile)[:len(*pile)-1]
}

// moveSingle transfers exactly one card between two places, covering the
// four pile/field endpoint combinations. Counters are cleared whenever the
// card crosses the pile/field boundary; overlay stacks are rebalanced when
// an overlay slot is vacated or filled. Code/position histories are the
// caller's responsibility.
func (b *Board) moveSingle(from, to Place) (*Card, error) {
	if from == to {
		return nil, fmt.Errorf("%+v: %w", from, ErrIllegalMove)
	}
	switch {
	case from.IsPile() && to.IsPile():
		fromPile, err := b.pile(from.Controller, from.Location)
		if err != nil {
			return nil, err
		}
		toPile, err := b.pile(to.Controller, to.Location)
		if err != nil {
			return nil, err
		}
		if int(from.Sequence) >= len(*fromPile) {
			return nil, fmt.Errorf("move source %+v: %w", from, ErrMissingCard)
		}
		card := (*fromPile)[from.Sequence]
		eraseCard(fromPile, from.Sequence)
		if int(to.Sequence) > len(*toPile) {
			insertCard(fromPile, from.Sequence, card)
			return nil, fmt.Errorf("move target %+v: %w", to, ErrMalformedMessage)
		}
		insertCard(toPile, to.Sequence, card)
		return card, nil
	case from.IsPile() && !to.IsPile():
		fromPile, err := b.pile(from.Controller, from.Location)
		if err != nil {
			return nil, err
		}
		if int(from.Sequence) >= len(*fromPile) {
			return nil, fmt.Errorf("move source %+v: %w", from, ErrMissingCard)
		}
		card := (*fromPile)[from.Sequence]
		eraseCard(fromPile, from.Sequence)
		if to.OverlaySequence >= 0 {
			b.openOverlayGap(to)
		}
		b.fieldZones[to] = card
		b.clearAllCounters(card)
		return card, nil
	case !from.IsPile() && to.IsPile():
		card, ok := b.fieldZones[from]
		if !ok {
			return nil, fmt.Errorf("move source %+v: %w", from, ErrMissingCard)
		}
		toPile, err := b.pile(to.Controller, to.Location)
		if err != nil {
			return nil, err
		}
		if int(to.Sequence) > len(*toPile) {
			return nil, fmt.Errorf("move target %+v: %w", to, ErrMalformedMessage)
		}
		delete(b.fieldZones, from)
		if from.OverlaySequence >= 0 {
			b.compactOverlays(from)
		}
		insertCard(toPile, to.Sequence, card)
		b.clearAllCounters(card)
		return card, nil
	default:
		card, ok := b.fieldZones[from]
		if !ok {
			return nil, fmt.Errorf("move source %+v: %w", from, ErrMissingCard)
		}
		delete(b.fieldZones, from)
		if from.OverlaySequence >= 0 {
			b.compactOverlays(from)
		}
		if to.OverlaySequence >= 0 {
			b.openOverlayGap(to)
		}
		b.fieldZones[to] = card
		return card, nil
	}
}

// compactOverlays shifts every overlay above a vacated slot down by one so
// overlay indices stay contiguous.
func (b *Board) compactOverlays(vacated Place) {
	for seq := vacated.OverlaySequence + 1; ; seq++ {
		cur := vacated
		cur.OverlaySequence = seq
		card, ok := b.fieldZones[cur]
		if !ok {
			return
		}
		delete(b.fieldZones, cur)
		cur.OverlaySequence = seq - 1
		b.fieldZones[cur] = card
	}
}

// openOverlayGap shifts the overlay at the target slot and everything above
// it up by one, making room for an insertion.
func (b *Board) openOverlayGap(target Place) {
	top := target.OverlaySequence
	for {
		probe := target
		probe.OverlaySequence = top
		if _, ok := b.fieldZones[probe]; !ok {
			break
		}
		top++
	}
	for seq := top - 1; seq >= target.OverlaySequence; seq-- {
		cur := target
		cur.OverlaySequence = seq
		card := b.fieldZones[cur]
		delete(b.fieldZones, cur)
		cur.OverlaySequence = seq + 1
		b.fieldZones[cur] = card
	}
}

// addCounter appends current+count onto the card's cell for the counter
// type, creating the cell on first sight.
func (b *Board) addCounter(place Place, counter Counter) error {
	card, err := b.cardAt(place)
	if err != nil {
		return err
	}
	if cell, ok := card.Counters[counter.Type]; ok {
		cell.AddOrNext(b.realtime, cell.Get()+counter.Count)
		return nil
	}
	cell := newU32Cell()
	card.Counters[counter.Type] = cell
	cell.AddOrNext(b.realtime, counter.Count)
	return nil
}

// subtractCounter appends current-count, clamped at zero. Removing a
// counter type the card never carried is a protocol fault.
func (b *Board) subtractCounter(place Place, counter Counter) error {
	card, err := b.cardAt(place)
	if err != nil {
		return err
	}
	cell, ok := card.Counters[counter.Type]
	if !ok {
		return fmt.Errorf("counter type %d at %+v: %w", counter.Type, place, ErrMalformedMessage)
	}
	current := cell.Get()
	if counter.Count > current {
		cell.AddOrNext(b.realtime, 0)
	} else {
		cell.AddOrNext(b.realtime, current-counter.Count)
	}
	return nil
}

// retreatCounter rewinds the card's cell for the counter type by one step.
func (b *Board) retreatCounter(place Place, counter Counter) error {
	card, err := b.cardAt(place)
	if err != nil {
		return err
	}
	cell, ok := card.Counters[counter.Type]
	if !ok || cell.AtSentinel() {
		return fmt.Errorf("counter type %d at %+v: %w", counter.Type, place, ErrMalformedMessage)
	}
	cell.Prev()
	return nil
}

// clearAllCounters steps every counter cell of the card by the current
// direction: forward records zero counts, backward retreats them. Used when
// a card leaves or re-enters the field. A cell sitting on its sentinel was
// created after this crossing (cells are created lazily), so it is skipped
// in both directions.
func (b *Board) clearAllCounters(card *Card) {
	if b.advancing {
		for _, cell := range card.Counters {
			if cell.AtSentinel() {
				continue
			}
			cell.AddOrNext(b.realtime, 0)
		}
	} else {
		for _, cell := range card.Counters {
			if cell.AtSentinel() {
				continue
			}
			cell.Prev()
		}
	}
}

// FillPile seeds a pile with face-down cards before the first forward step.
func (b *Board) FillPile(controller uint8, location Location, count int) error {
	pile, err := b.pile(controller, location)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		card := NewCard()
		card.Pos.AddOrNext(true, PositionFaceDown)
		*pile = append(*pile, card)
	}
	return nil
}

// SetLP seeds a player's life points before the first forward step.
func (b *Board) SetLP(controller uint8, lp uint32) error {
	if controller > 1 {
		return fmt.Errorf("controller %d: %w", controller, ErrMalformedMessage)
	}
	b.playerLP[controller].AddOrNext(true, lp)
	return nil
}

// TotalStates returns the length of the message log.
func (b *Board) TotalStates() int {
	return len(b.msgs)
}

// ProcessedStates returns the high-water mark of forward progress.
func (b *Board) ProcessedStates() uint32 {
	return b.processedState
}

// CurrentState returns the cursor position.
func (b *Board) CurrentState() uint32 {
	return b.state
}

// IsRealtime reports whether the next forward step appends new history.
func (b *Board) IsRealtime() bool {
	return b.state == b.processedState
}

// Pile returns the current contents of a pile. The returned slice is the
// board's own storage; callers must not mutate it.
func (b *Board) Pile(controller uint8, location Location) ([]*Card, error) {
	pile, err := b.pile(controller, location)
	if err != nil {
		return nil, err
	}
	return *pile, nil
}

// FieldZones returns a copy of the current field-slot map.
func (b *Board) FieldZones() map[Place]*Card {
	zones := make(map[Place]*Card, len(b.fieldZones))
	for place, card := range b.fieldZones {
		zones[place] = card
	}
	return zones
}

// FieldCard returns the card at a field place.
func (b *Board) FieldCard(place Place) (*Card, bool) {
	card, ok := b.fieldZones[place]
	return card, ok
}

// TempCard returns the temporal-removed card for a state/place key.
func (b *Board) TempCard(state uint32, place Place) (*Card, bool) {
	card, ok := b.tempCards[TempPlace{State: state, Place: place}]
	return card, ok
}

// DisabledZones returns the current disabled flag for every zone in the
// fixed domain.
func (b *Board) DisabledZones() map[Place]bool {
	zones := make(map[Place]bool, disabledZoneCount)
	for i, cell := range b.disabledZones {
		zones[disabledZonePlace(i)] = cell.Get()
	}
	return zones
}

// ZoneDisabled reports whether the zone is currently blocked. Places outside
// the fixed domain are never disabled.
func (b *Board) ZoneDisabled(place Place) bool {
	i, ok := disabledZoneIndex(place)
	if !ok {
		return false
	}
	return b.disabledZones[i].Get()
}

// LP returns the current life points of a player.
func (b *Board) LP(player uint8) uint32 {
	return b.playerLP[player].Get()
}

// Turn returns the current turn number.
func (b *Board) Turn() uint32 {
	return b.turn
}

// TurnPlayer returns the player whose turn it is.
func (b *Board) TurnPlayer() uint32 {
	return b.turnPlayer.Get()
}

// Phase returns the current phase.
func (b *Board) Phase() uint32 {
	return b.phase.Get()
}
