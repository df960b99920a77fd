package duel

import "sort"

// CardView is the read-only projection of a card at the current state.
type CardView struct {
	Code     uint32            `json:"code"`
	Position uint32            `json:"position"`
	Alias    uint32            `json:"alias,omitempty"`
	Level    int32             `json:"level,omitempty"`
	Atk      int32             `json:"atk,omitempty"`
	Def      int32             `json:"def,omitempty"`
	Counters map[uint32]uint32 `json:"counters,omitempty"`
}

// FieldCardView is a card view plus the field coordinate it occupies.
type FieldCardView struct {
	Place Place    `json:"place"`
	Card  CardView `json:"card"`
}

// ZoneView is a disabled-zone flag plus its coordinate.
type ZoneView struct {
	Place    Place `json:"place"`
	Disabled bool  `json:"disabled"`
}

// PileView is the current contents of one pile.
type PileView struct {
	Controller uint8      `json:"controller"`
	Location   Location   `json:"location"`
	Cards      []CardView `json:"cards"`
}

// BoardView is a full snapshot of the observable state, taken at the
// current cursor position.
type BoardView struct {
	Turn            uint32          `json:"turn"`
	TurnPlayer      uint32          `json:"turn_player"`
	Phase           uint32          `json:"phase"`
	LP              [2]uint32       `json:"lp"`
	Piles           []PileView      `json:"piles"`
	Field           []FieldCardView `json:"field"`
	DisabledZones   []ZoneView      `json:"disabled_zones"`
	CurrentState    uint32          `json:"current_state"`
	ProcessedStates uint32          `json:"processed_states"`
	TotalStates     int             `json:"total_states"`
	Realtime        bool            `json:"realtime"`
}

func viewOfCard(card *Card) CardView {
	view := CardView{
		Code:     card.Code.Get(),
		Position: card.Pos.Get(),
		Alias:    card.Alias.Get(),
		Level:    card.Level.Get(),
		Atk:      card.Atk.Get(),
		Def:      card.Def.Get(),
	}
	for counterType, cell := range card.Counters {
		if count := cell.Get(); count > 0 {
			if view.Counters == nil {
				view.Counters = make(map[uint32]uint32)
			}
			view.Counters[counterType] = count
		}
	}
	return view
}

var pileLocations = []Location{
	LocationMainDeck,
	LocationHand,
	LocationGraveyard,
	LocationBanished,
	LocationExtraDeck,
}

// View captures the whole observable state at the current cursor position.
func (b *Board) View() BoardView {
	view := BoardView{
		Turn:            b.turn,
		TurnPlayer:      b.turnPlayer.Get(),
		Phase:           b.phase.Get(),
		LP:              [2]uint32{b.playerLP[0].Get(), b.playerLP[1].Get()},
		CurrentState:    b.state,
		ProcessedStates: b.processedState,
		TotalStates:     len(b.msgs),
		Realtime:        b.IsRealtime(),
	}
	for controller := uint8(0); controller < 2; controller++ {
		for _, location := range pileLocations {
			pile, _ := b.pile(controller, location)
			cards := make([]CardView, len(*pile))
			for i, card := range *pile {
				cards[i] = viewOfCard(card)
			}
			view.Piles = append(view.Piles, PileView{
				Controller: controller,
				Location:   location,
				Cards:      cards,
			})
		}
	}
	for place, card := range b.fieldZones {
		view.Field = append(view.Field, FieldCardView{Place: place, Card: viewOfCard(card)})
	}
	sort.Slice(view.Field, func(i, j int) bool {
		return placeLess(view.Field[i].Place, view.Field[j].Place)
	})
	for i, cell := range b.disabledZones {
		view.DisabledZones = append(view.DisabledZones, ZoneView{
			Place:    disabledZonePlace(i),
			Disabled: cell.Get(),
		})
	}
	return view
}

func placeLess(a, z Place) bool {
	if a.Controller != z.Controller {
		return a.Controller < z.Controller
	}
	if a.Location != z.Location {
		return a.Location < z.Location
	}
	if a.Sequence != z.Sequence {
		return a.Sequence < z.Sequence
	}
	return a.OverlaySequence < z.OverlaySequence
}
