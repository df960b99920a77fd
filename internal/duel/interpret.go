package duel

import (
	"fmt"

	"go.uber.org/zap"
)

// Append adds a message at the end of the log. The cursor does not move and
// no state is touched.
func (b *Board) Append(m Message) {
	b.msgs = append(b.msgs, m)
}

// Forward advances the duel state once. A no-op when the cursor is at the
// live tail. On error the board and cursor are unchanged.
func (b *Board) Forward() error {
	if len(b.msgs) == 0 || int(b.state) >= len(b.msgs) {
		return nil
	}
	b.realtime = b.state == b.processedState
	b.advancing = true
	if err := b.interpret(b.msgs[b.state]); err != nil {
		return err
	}
	if b.realtime {
		b.processedState++
	}
	b.state++
	return nil
}

// Backward regresses the duel state once. A no-op at state zero.
func (b *Board) Backward() error {
	if b.state == 0 {
		return nil
	}
	b.realtime = false
	b.advancing = false
	b.state--
	if err := b.interpret(b.msgs[b.state]); err != nil {
		b.state++
		return err
	}
	return nil
}

// tempTag is the state a card ceasing to exist during the current step is
// keyed under: the state reached after the forward interpretation of the
// message being stepped over. Both directions interpret the same message
// index, so the tag is stable across the round trip.
func (b *Board) tempTag() uint32 {
	return b.state + 1
}

func (b *Board) interpret(m Message) error {
	switch msg := m.(type) {
	case UpdateCard:
		return b.handleUpdateCard(msg)
	case AddCard:
		return b.handleAddCard(msg)
	case RemoveCard:
		return b.handleRemoveCard(msg)
	case Draw:
		return b.handleDraw(msg)
	case SwapCards:
		return b.handleSwapCards(msg)
	case ShuffleLocation:
		return b.handleShuffleLocation(msg)
	case ShuffleSetCards:
		return b.handleShuffleSetCards(msg)
	case CounterChange:
		return b.handleCounterChange(msg)
	case DisableZones:
		return b.handleDisableZones(msg)
	case LpChange:
		return b.handleLpChange(msg)
	case NewTurn:
		return b.handleNewTurn(msg)
	case NewPhase:
		return b.handleNewPhase(msg)
	default:
		b.logger.Debug("non-critical message", zap.String("type", string(m.Type())))
		return nil
	}
}

func (b *Board) handleUpdateCard(msg UpdateCard) error {
	switch msg.Reason {
	case ReasonDeckTop, ReasonMove, ReasonPosChange, ReasonSet:
	default:
		return fmt.Errorf("update reason %d: %w", msg.Reason, ErrMalformedMessage)
	}
	if b.advancing {
		switch msg.Reason {
		case ReasonDeckTop:
			card, err := b.deckTopCard(msg.Previous)
			if err != nil {
				return err
			}
			card.Code.AddOrNext(b.realtime, msg.Current.Code)
		case ReasonMove:
			card, err := b.moveSingle(msg.Previous.Place(), msg.Current.Place())
			if err != nil {
				return err
			}
			card.Code.AddOrNext(b.realtime, msg.Current.Code)
			card.Pos.AddOrNext(b.realtime, msg.Current.Position)
		default: // ReasonPosChange, ReasonSet
			card, err := b.cardAt(msg.Previous.Place())
			if err != nil {
				return err
			}
			card.Code.AddOrNext(b.realtime, msg.Current.Code)
			card.Pos.AddOrNext(b.realtime, msg.Current.Position)
		}
		return nil
	}
	switch msg.Reason {
	case ReasonDeckTop:
		card, err := b.deckTopCard(msg.Previous)
		if err != nil {
			return err
		}
		card.Code.Prev()
	case ReasonMove:
		card, err := b.cardAt(msg.Current.Place())
		if err != nil {
			return err
		}
		card.Code.Prev()
		card.Pos.Prev()
		if _, err := b.moveSingle(msg.Current.Place(), msg.Previous.Place()); err != nil {
			card.Code.AddOrNext(false, 0)
			card.Pos.AddOrNext(false, 0)
			return err
		}
	default: // ReasonPosChange, ReasonSet
		card, err := b.cardAt(msg.Previous.Place())
		if err != nil {
			return err
		}
		card.Code.Prev()
		card.Pos.Prev()
	}
	return nil
}

// deckTopCard addresses a card by reverse offset from its pile top.
func (b *Board) deckTopCard(info CardInfo) (*Card, error) {
	pile, err := b.pile(info.Controller, info.Location)
	if err != nil {
		return nil, err
	}
	index := len(*pile) - 1 - int(info.Sequence)
	if index < 0 {
		return nil, fmt.Errorf("reverse offset %d of %d: %w", info.Sequence, len(*pile), ErrMissingCard)
	}
	return (*pile)[index], nil
}

func (b *Board) handleAddCard(msg AddCard) error {
	place := msg.Card.Place()
	if b.advancing {
		var card *Card
		if b.realtime {
			card = NewCard()
		} else {
			tag := TempPlace{State: b.tempTag(), Place: place}
			stored, ok := b.tempCards[tag]
			if !ok {
				return fmt.Errorf("no removed card for state %d at %+v: %w", tag.State, place, ErrMalformedMessage)
			}
			card = stored
			delete(b.tempCards, tag)
		}
		if place.IsPile() {
			pile, err := b.pile(place.Controller, place.Location)
			if err != nil {
				return err
			}
			if int(place.Sequence) > len(*pile) {
				if !b.realtime {
					b.tempCards[TempPlace{State: b.tempTag(), Place: place}] = card
				}
				return fmt.Errorf("add at %+v: %w", place, ErrMalformedMessage)
			}
			insertCard(pile, place.Sequence, card)
		} else {
			if _, occupied := b.fieldZones[place]; occupied {
				if !b.realtime {
					b.tempCards[TempPlace{State: b.tempTag(), Place: place}] = card
				}
				return fmt.Errorf("add at occupied %+v: %w", place, ErrMalformedMessage)
			}
			b.fieldZones[place] = card
		}
		card.Code.AddOrNext(b.realtime, msg.Card.Code)
		card.Pos.AddOrNext(b.realtime, msg.Card.Position)
		return nil
	}
	card, err := b.cardAt(place)
	if err != nil {
		return err
	}
	card.Code.Prev()
	card.Pos.Prev()
	b.detachCard(place)
	b.tempCards[TempPlace{State: b.tempTag(), Place: place}] = card
	return nil
}

func (b *Board) handleRemoveCard(msg RemoveCard) error {
	place := msg.Card.Place()
	if b.advancing {
		card, err := b.cardAt(place)
		if err != nil {
			return err
		}
		tag := TempPlace{State: b.tempTag(), Place: place}
		if _, occupied := b.tempCards[tag]; occupied {
			return fmt.Errorf("removed-card slot %d %+v occupied: %w", tag.State, place, ErrMalformedMessage)
		}
		b.detachCard(place)
		b.tempCards[tag] = card
		return nil
	}
	tag := TempPlace{State: b.tempTag(), Place: place}
	card, ok := b.tempCards[tag]
	if !ok {
		return fmt.Errorf("no removed card for state %d at %+v: %w", tag.State, place, ErrMalformedMessage)
	}
	if place.IsPile() {
		pile, err := b.pile(place.Controller, place.Location)
		if err != nil {
			return err
		}
		if int(place.Sequence) > len(*pile) {
			return fmt.Errorf("restore at %+v: %w", place, ErrMalformedMessage)
		}
		insertCard(pile, place.Sequence, card)
	} else {
		b.fieldZones[place] = card
	}
	delete(b.tempCards, tag)
	return nil
}

// detachCard removes the card at place from its container without touching
// any history. The caller has already verified the card exists.
func (b *Board) detachCard(place Place) {
	if place.IsPile() {
		pile, _ := b.pile(place.Controller, place.Location)
		eraseCard(pile, place.Sequence)
		return
	}
	delete(b.fieldZones, place)
}

func (b *Board) handleDraw(msg Draw) error {
	if msg.Player > 1 {
		return fmt.Errorf("draw player %d: %w", msg.Player, ErrMalformedMessage)
	}
	n := len(msg.Cards)
	deck := &b.deck[msg.Player]
	hand := &b.hand[msg.Player]
	if b.advancing {
		if n > len(*deck) {
			return fmt.Errorf("draw %d of %d: %w", n, len(*deck), ErrMalformedMessage)
		}
		handSize := len(*hand)
		for i := 0; i < n; i++ {
			*hand = append(*hand, (*deck)[len(*deck)-1-i])
		}
		*deck = (*deck)[:len(*deck)-n]
		for i, info := range msg.Cards {
			(*hand)[handSize+i].Code.AddOrNext(b.realtime, info.Code)
		}
		return nil
	}
	if n > len(*hand) {
		return fmt.Errorf("undraw %d of %d: %w", n, len(*hand), ErrMalformedMessage)
	}
	handSize := len(*hand)
	for i := 0; i < n; i++ {
		(*hand)[handSize-1-i].Code.Prev()
	}
	for i := 0; i < n; i++ {
		*deck = append(*deck, (*hand)[len(*hand)-1-i])
	}
	*hand = (*hand)[:handSize-n]
	return nil
}

// handleSwapCards exchanges the cards at two places. The operation is its
// own inverse, so both directions run the same exchange; no history cells
// are touched.
func (b *Board) handleSwapCards(msg SwapCards) error {
	place1 := msg.Card1.Place()
	place2 := msg.Card2.Place()
	if place1 == place2 {
		return fmt.Errorf("swap %+v with itself: %w", place1, ErrIllegalMove)
	}
	card1, err := b.cardAt(place1)
	if err != nil {
		return err
	}
	card2, err := b.cardAt(place2)
	if err != nil {
		return err
	}
	b.setCardAt(place1, card2)
	b.setCardAt(place2, card1)
	return nil
}

// setCardAt overwrites the occupied slot at place with card. Only valid for
// places whose occupancy was just verified.
func (b *Board) setCardAt(place Place, card *Card) {
	if place.IsPile() {
		pile, _ := b.pile(place.Controller, place.Location)
		(*pile)[place.Sequence] = card
		return
	}
	b.fieldZones[place] = card
}

func (b *Board) handleShuffleLocation(msg ShuffleLocation) error {
	pile, err := b.pile(msg.Player, msg.Location)
	if err != nil {
		return err
	}
	if b.advancing {
		if len(msg.ShuffledCards) != 0 && len(msg.ShuffledCards) != len(*pile) {
			return fmt.Errorf("shuffle of %d cards over pile of %d: %w",
				len(msg.ShuffledCards), len(*pile), ErrMalformedMessage)
		}
		for i, card := range *pile {
			if len(msg.ShuffledCards) != 0 {
				card.Code.AddOrNext(b.realtime, msg.ShuffledCards[i].Code)
				continue
			}
			card.Code.AddOrNext(b.realtime, 0)
		}
		return nil
	}
	for _, card := range *pile {
		card.Code.Prev()
	}
	return nil
}

func (b *Board) handleShuffleSetCards(msg ShuffleSetCards) error {
	if len(msg.Current) != 0 && len(msg.Current) != len(msg.Previous) {
		return fmt.Errorf("shuffle-set of %d over %d places: %w",
			len(msg.Current), len(msg.Previous), ErrMalformedMessage)
	}
	cards := make([]*Card, len(msg.Previous))
	for i, info := range msg.Previous {
		card, err := b.cardAt(info.Place())
		if err != nil {
			return err
		}
		cards[i] = card
	}
	if b.advancing {
		for i, card := range cards {
			if len(msg.Current) != 0 {
				card.Code.AddOrNext(b.realtime, msg.Current[i].Code)
				card.Pos.AddOrNext(b.realtime, msg.Current[i].Position)
				continue
			}
			card.Code.AddOrNext(b.realtime, 0)
			card.Pos.AddOrNext(b.realtime, msg.Previous[i].Position)
		}
		return nil
	}
	for _, card := range cards {
		card.Code.Prev()
		card.Pos.Prev()
	}
	return nil
}

func (b *Board) handleCounterChange(msg CounterChange) error {
	switch msg.Change {
	case CounterAdd, CounterRemove:
	default:
		return fmt.Errorf("counter change %d: %w", msg.Change, ErrMalformedMessage)
	}
	place := msg.Place.Place()
	if !b.advancing {
		return b.retreatCounter(place, msg.Counter)
	}
	if msg.Change == CounterAdd {
		return b.addCounter(place, msg.Counter)
	}
	return b.subtractCounter(place, msg.Counter)
}

func (b *Board) handleDisableZones(msg DisableZones) error {
	if b.advancing {
		// Re-walking recorded history: sync every cell over its recorded
		// entry before appending the new pass.
		if !b.realtime {
			for _, cell := range b.disabledZones {
				cell.AddOrNext(false, false)
			}
		}
		disabled := make(map[Place]bool, len(msg.Places))
		for _, ref := range msg.Places {
			disabled[ref.Place()] = true
		}
		for i, cell := range b.disabledZones {
			cell.AddOrNext(true, disabled[disabledZonePlace(i)])
		}
		return nil
	}
	for _, cell := range b.disabledZones {
		cell.Prev()
	}
	return nil
}

func (b *Board) handleLpChange(msg LpChange) error {
	if msg.Player > 1 {
		return fmt.Errorf("lp player %d: %w", msg.Player, ErrMalformedMessage)
	}
	cell := b.playerLP[msg.Player]
	if !b.advancing {
		cell.Prev()
		return nil
	}
	current := cell.Get()
	switch msg.Change {
	case LpDamage, LpPay:
		if msg.Amount > current {
			cell.AddOrNext(b.realtime, 0)
		} else {
			cell.AddOrNext(b.realtime, current-msg.Amount)
		}
	case LpRecover:
		cell.AddOrNext(b.realtime, current+msg.Amount)
	case LpBecome:
		cell.AddOrNext(b.realtime, msg.Amount)
	default:
		return fmt.Errorf("lp change %d: %w", msg.Change, ErrMalformedMessage)
	}
	return nil
}

func (b *Board) handleNewTurn(msg NewTurn) error {
	if b.advancing {
		b.turn++
		b.turnPlayer.AddOrNext(b.realtime, uint32(msg.TurnPlayer))
		return nil
	}
	b.turnPlayer.Prev()
	b.turn--
	return nil
}

func (b *Board) handleNewPhase(msg NewPhase) error {
	if b.advancing {
		b.phase.AddOrNext(b.realtime, msg.Phase)
		return nil
	}
	b.phase.Prev()
	return nil
}
