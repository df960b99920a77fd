package duel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededBoard(t *testing.T) *Board {
	t.Helper()
	b := NewBoard(nil)
	require.NoError(t, b.FillPile(0, LocationMainDeck, 40))
	require.NoError(t, b.FillPile(1, LocationMainDeck, 40))
	require.NoError(t, b.SetLP(0, 8000))
	require.NoError(t, b.SetLP(1, 8000))
	return b
}

func TestDrawThenUndraw(t *testing.T) {
	b := seededBoard(t)
	b.Append(Draw{Player: 0, Cards: []CardInfo{{Code: 1234}, {Code: 5678}}})

	require.NoError(t, b.Forward())

	hand, _ := b.Pile(0, LocationHand)
	deck, _ := b.Pile(0, LocationMainDeck)
	require.Len(t, hand, 2)
	assert.Len(t, deck, 38)
	assert.Equal(t, uint32(1234), hand[0].Code.Get())
	assert.Equal(t, uint32(5678), hand[1].Code.Get())

	require.NoError(t, b.Backward())

	hand, _ = b.Pile(0, LocationHand)
	deck, _ = b.Pile(0, LocationMainDeck)
	assert.Empty(t, hand)
	require.Len(t, deck, 40)
	for _, card := range deck {
		assert.True(t, card.Code.AtSentinel())
	}
}

func TestSummonToMonsterZone(t *testing.T) {
	b := NewBoard(nil)
	require.NoError(t, b.FillPile(0, LocationHand, 1))
	b.Append(UpdateCard{
		Reason:   ReasonMove,
		Previous: CardInfo{Controller: 0, Location: LocationHand, Sequence: 0},
		Current: CardInfo{
			Controller: 0,
			Location:   LocationMonsterZone,
			Sequence:   2,
			Code:       111,
			Position:   PositionFaceUpAttack,
		},
	})

	require.NoError(t, b.Forward())

	hand, _ := b.Pile(0, LocationHand)
	assert.Empty(t, hand)
	card, ok := b.FieldCard(monsterZone(0, 2))
	require.True(t, ok)
	assert.Equal(t, uint32(111), card.Code.Get())
	assert.Equal(t, PositionFaceUpAttack, card.Pos.Get())

	require.NoError(t, b.Backward())

	hand, _ = b.Pile(0, LocationHand)
	require.Len(t, hand, 1)
	_, ok = b.FieldCard(monsterZone(0, 2))
	assert.False(t, ok)
	assert.True(t, hand[0].Code.AtSentinel())
	assert.Equal(t, PositionFaceDown, hand[0].Pos.Get())
}

func TestCounterAddRemove(t *testing.T) {
	b := NewBoard(nil)
	place := monsterZone(0, 3)
	b.fieldZones[place] = NewCard()

	ref := PlaceRef{Controller: 0, Location: LocationMonsterZone, Sequence: 3}
	b.Append(CounterChange{Place: ref, Counter: Counter{Type: 7, Count: 2}, Change: CounterAdd})
	b.Append(CounterChange{Place: ref, Counter: Counter{Type: 7, Count: 3}, Change: CounterAdd})
	b.Append(CounterChange{Place: ref, Counter: Counter{Type: 7, Count: 1}, Change: CounterRemove})

	card := b.fieldZones[place]
	expected := []uint32{2, 5, 4}
	for _, want := range expected {
		require.NoError(t, b.Forward())
		assert.Equal(t, want, card.CounterCount(7))
	}

	require.NoError(t, b.Backward())
	assert.Equal(t, uint32(5), card.CounterCount(7))
	require.NoError(t, b.Backward())
	assert.Equal(t, uint32(2), card.CounterCount(7))
	require.NoError(t, b.Backward())
	assert.Equal(t, uint32(0), card.CounterCount(7))
	assert.True(t, card.Counters[7].AtSentinel())
}

func TestLpClamp(t *testing.T) {
	b := NewBoard(nil)
	require.NoError(t, b.SetLP(0, 1000))
	b.Append(LpChange{Player: 0, Change: LpDamage, Amount: 4000})

	require.NoError(t, b.Forward())
	assert.Equal(t, uint32(0), b.LP(0))

	require.NoError(t, b.Backward())
	assert.Equal(t, uint32(1000), b.LP(0))
}

func TestLpChangeKinds(t *testing.T) {
	b := NewBoard(nil)
	require.NoError(t, b.SetLP(1, 8000))
	b.Append(LpChange{Player: 1, Change: LpPay, Amount: 1000})
	b.Append(LpChange{Player: 1, Change: LpRecover, Amount: 500})
	b.Append(LpChange{Player: 1, Change: LpBecome, Amount: 100})

	require.NoError(t, b.Forward())
	assert.Equal(t, uint32(7000), b.LP(1))
	require.NoError(t, b.Forward())
	assert.Equal(t, uint32(7500), b.LP(1))
	require.NoError(t, b.Forward())
	assert.Equal(t, uint32(100), b.LP(1))

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Backward())
	}
	assert.Equal(t, uint32(8000), b.LP(1))
}

func TestDisableZonesForwardBack(t *testing.T) {
	b := NewBoard(nil)
	disabled := []PlaceRef{
		{Controller: 0, Location: LocationMonsterZone, Sequence: 2},
		{Controller: 1, Location: LocationSpellZone, Sequence: 0},
	}
	b.Append(DisableZones{Places: disabled})

	require.NoError(t, b.Forward())

	zones := b.DisabledZones()
	assert.Len(t, zones, disabledZoneCount)
	for place, isDisabled := range zones {
		want := place == disabled[0].Place() || place == disabled[1].Place()
		assert.Equal(t, want, isDisabled, "place %+v", place)
	}

	require.NoError(t, b.Backward())
	for place, isDisabled := range b.DisabledZones() {
		assert.False(t, isDisabled, "place %+v", place)
	}
}

func TestDisableZonesRewalkSync(t *testing.T) {
	b := NewBoard(nil)
	b.Append(DisableZones{Places: []PlaceRef{{Controller: 0, Location: LocationMonsterZone, Sequence: 0}}})

	require.NoError(t, b.Forward())
	require.NoError(t, b.Backward())

	// Re-walking the same message is no longer realtime: the handler syncs
	// over the recorded pass before appending a fresh one.
	require.NoError(t, b.Forward())
	assert.True(t, b.ZoneDisabled(monsterZone(0, 0)))
	assert.False(t, b.ZoneDisabled(monsterZone(0, 1)))

	// One retreat lands on the recorded first pass, not the sentinel: the
	// sync pass advanced each cell an extra step.
	require.NoError(t, b.Backward())
	assert.True(t, b.ZoneDisabled(monsterZone(0, 0)))
	assert.False(t, b.ZoneDisabled(monsterZone(0, 1)))
}

func TestRemoveThenAddRestoresIdentity(t *testing.T) {
	b := NewBoard(nil)
	place := monsterZone(0, 0)
	card := NewCard()
	card.Code.AddOrNext(true, 42)
	b.fieldZones[place] = card
	b.advancing = true
	b.realtime = true
	require.NoError(t, b.addCounter(place, Counter{Type: 5, Count: 3}))

	info := CardInfo{Controller: 0, Location: LocationMonsterZone, Sequence: 0, Code: 42, Position: PositionFaceUpAttack}
	b.Append(RemoveCard{Card: info})
	require.NoError(t, b.Forward())

	removed, ok := b.TempCard(1, place)
	require.True(t, ok)
	assert.Same(t, card, removed)
	_, onField := b.FieldCard(place)
	assert.False(t, onField)

	b.Append(AddCard{Card: info})
	require.NoError(t, b.Forward())
	fresh, ok := b.FieldCard(place)
	require.True(t, ok)
	assert.NotSame(t, card, fresh)

	require.NoError(t, b.Backward())
	require.NoError(t, b.Backward())

	restored, ok := b.FieldCard(place)
	require.True(t, ok)
	assert.Same(t, card, restored)
	assert.Equal(t, uint32(42), restored.Code.Get())
	assert.Equal(t, uint32(3), restored.CounterCount(5))
}

func TestAddCardRewalkReusesRemovedCard(t *testing.T) {
	b := NewBoard(nil)
	b.Append(AddCard{Card: CardInfo{Controller: 0, Location: LocationMonsterZone, Sequence: 4, Code: 77, Position: PositionFaceUpAttack}})

	require.NoError(t, b.Forward())
	first, ok := b.FieldCard(monsterZone(0, 4))
	require.True(t, ok)

	require.NoError(t, b.Backward())
	_, ok = b.FieldCard(monsterZone(0, 4))
	assert.False(t, ok)
	stored, ok := b.TempCard(1, monsterZone(0, 4))
	require.True(t, ok)
	assert.Same(t, first, stored)

	// Re-walking forward pulls the same card back out of the temporal
	// container instead of minting a new one.
	require.NoError(t, b.Forward())
	again, ok := b.FieldCard(monsterZone(0, 4))
	require.True(t, ok)
	assert.Same(t, first, again)
	_, ok = b.TempCard(1, monsterZone(0, 4))
	assert.False(t, ok)
}

func TestDeckTopReveal(t *testing.T) {
	b := seededBoard(t)
	b.Append(UpdateCard{
		Reason:   ReasonDeckTop,
		Previous: CardInfo{Controller: 0, Location: LocationMainDeck, Sequence: 0},
		Current:  CardInfo{Controller: 0, Location: LocationMainDeck, Sequence: 0, Code: 999},
	})

	require.NoError(t, b.Forward())
	deck, _ := b.Pile(0, LocationMainDeck)
	assert.Equal(t, uint32(999), deck[len(deck)-1].Code.Get())

	require.NoError(t, b.Backward())
	deck, _ = b.Pile(0, LocationMainDeck)
	assert.True(t, deck[len(deck)-1].Code.AtSentinel())
}

func TestPositionChange(t *testing.T) {
	b := NewBoard(nil)
	place := monsterZone(1, 1)
	card := NewCard()
	b.fieldZones[place] = card
	b.Append(UpdateCard{
		Reason:   ReasonPosChange,
		Previous: CardInfo{Controller: 1, Location: LocationMonsterZone, Sequence: 1},
		Current:  CardInfo{Controller: 1, Location: LocationMonsterZone, Sequence: 1, Code: 321, Position: PositionFaceUpDefense},
	})

	require.NoError(t, b.Forward())
	assert.Equal(t, uint32(321), card.Code.Get())
	assert.Equal(t, PositionFaceUpDefense, card.Pos.Get())

	require.NoError(t, b.Backward())
	assert.True(t, card.Code.AtSentinel())
	assert.True(t, card.Pos.AtSentinel())
}

func TestSwapCards(t *testing.T) {
	b := NewBoard(nil)
	require.NoError(t, b.FillPile(0, LocationHand, 1))
	fieldCard := NewCard()
	b.fieldZones[monsterZone(0, 1)] = fieldCard
	hand, _ := b.Pile(0, LocationHand)
	handCard := hand[0]

	b.Append(SwapCards{
		Card1: CardInfo{Controller: 0, Location: LocationHand, Sequence: 0},
		Card2: CardInfo{Controller: 0, Location: LocationMonsterZone, Sequence: 1},
	})

	require.NoError(t, b.Forward())
	hand, _ = b.Pile(0, LocationHand)
	assert.Same(t, fieldCard, hand[0])
	got, _ := b.FieldCard(monsterZone(0, 1))
	assert.Same(t, handCard, got)

	require.NoError(t, b.Backward())
	hand, _ = b.Pile(0, LocationHand)
	assert.Same(t, handCard, hand[0])
	got, _ = b.FieldCard(monsterZone(0, 1))
	assert.Same(t, fieldCard, got)
}

func TestShuffleLocation(t *testing.T) {
	b := NewBoard(nil)
	require.NoError(t, b.FillPile(1, LocationMainDeck, 3))
	deck, _ := b.Pile(1, LocationMainDeck)
	b.advancing = true
	b.realtime = true
	for i, card := range deck {
		card.Code.AddOrNext(true, uint32(100+i))
	}

	// A shuffle with no revealed cards hides every code.
	b.Append(ShuffleLocation{Player: 1, Location: LocationMainDeck})
	require.NoError(t, b.Forward())
	for _, card := range deck {
		assert.Equal(t, uint32(0), card.Code.Get())
	}

	require.NoError(t, b.Backward())
	for i, card := range deck {
		assert.Equal(t, uint32(100+i), card.Code.Get())
	}

	// A reveal shuffle assigns each pile slot its shuffled code.
	b.Append(ShuffleLocation{Player: 1, Location: LocationMainDeck, ShuffledCards: []CardInfo{
		{Code: 300}, {Code: 301}, {Code: 302},
	}})
	require.NoError(t, b.Forward())
	require.NoError(t, b.Forward())
	for i, card := range deck {
		assert.Equal(t, uint32(300+i), card.Code.Get())
	}
}

func TestShuffleSetCards(t *testing.T) {
	b := NewBoard(nil)
	places := []Place{monsterZone(0, 0), monsterZone(0, 2)}
	for _, place := range places {
		card := NewCard()
		card.Code.AddOrNext(true, 10)
		card.Pos.AddOrNext(true, PositionFaceDownDefense)
		b.fieldZones[place] = card
	}
	previous := []CardInfo{
		{Controller: 0, Location: LocationMonsterZone, Sequence: 0, Position: PositionFaceDownDefense},
		{Controller: 0, Location: LocationMonsterZone, Sequence: 2, Position: PositionFaceDownDefense},
	}

	// Hiding pass: codes become unknown, positions stay.
	b.Append(ShuffleSetCards{Previous: previous})
	require.NoError(t, b.Forward())
	for _, place := range places {
		card := b.fieldZones[place]
		assert.Equal(t, uint32(0), card.Code.Get())
		assert.Equal(t, PositionFaceDownDefense, card.Pos.Get())
	}

	require.NoError(t, b.Backward())
	for _, place := range places {
		assert.Equal(t, uint32(10), b.fieldZones[place].Code.Get())
	}
}

func TestNewTurnAndPhase(t *testing.T) {
	b := NewBoard(nil)
	b.Append(NewTurn{TurnPlayer: 0})
	b.Append(NewPhase{Phase: 4})
	b.Append(NewTurn{TurnPlayer: 1})

	require.NoError(t, b.Forward())
	assert.Equal(t, uint32(1), b.Turn())
	assert.Equal(t, uint32(0), b.TurnPlayer())

	require.NoError(t, b.Forward())
	assert.Equal(t, uint32(4), b.Phase())

	require.NoError(t, b.Forward())
	assert.Equal(t, uint32(2), b.Turn())
	assert.Equal(t, uint32(1), b.TurnPlayer())

	require.NoError(t, b.Backward())
	require.NoError(t, b.Backward())
	require.NoError(t, b.Backward())
	assert.Equal(t, uint32(0), b.Turn())
	assert.Equal(t, uint32(0), b.Phase())
}

func TestForwardAtTailAndBackwardAtZeroAreNoOps(t *testing.T) {
	b := NewBoard(nil)
	require.NoError(t, b.Forward())
	require.NoError(t, b.Backward())
	assert.Equal(t, uint32(0), b.CurrentState())

	b.Append(NewPhase{Phase: 2})
	require.NoError(t, b.Forward())
	require.NoError(t, b.Forward())
	assert.Equal(t, uint32(1), b.CurrentState())
	assert.Equal(t, uint32(2), b.Phase())
}

func TestNonCriticalMessagesAreStateNeutral(t *testing.T) {
	b := seededBoard(t)
	b.Append(Hint{Player: 0, Kind: 1, Data: 5})
	b.Append(Win{Player: 1, Reason: 2})

	before := b.View()
	require.NoError(t, b.Forward())
	require.NoError(t, b.Forward())
	after := b.View()

	before.CurrentState = after.CurrentState
	before.ProcessedStates = after.ProcessedStates
	assert.Equal(t, before, after)
}

func TestAppendSafety(t *testing.T) {
	b := seededBoard(t)
	before := b.View()
	b.Append(Draw{Player: 0, Cards: []CardInfo{{Code: 1}}})
	after := b.View()

	assert.Equal(t, before.TotalStates+1, after.TotalStates)
	before.TotalStates = after.TotalStates
	assert.Equal(t, before, after)
}

func TestCursorInvariants(t *testing.T) {
	b := seededBoard(t)
	b.Append(Draw{Player: 0, Cards: []CardInfo{{Code: 1}, {Code: 2}}})
	b.Append(LpChange{Player: 1, Change: LpDamage, Amount: 700})
	b.Append(NewTurn{TurnPlayer: 0})

	require.NoError(t, b.Forward())
	require.NoError(t, b.Forward())
	assert.Equal(t, uint32(2), b.CurrentState())
	assert.Equal(t, uint32(2), b.ProcessedStates())

	require.NoError(t, b.Backward())
	require.NoError(t, b.Backward())
	assert.Equal(t, uint32(0), b.CurrentState())
	// The high-water mark never regresses.
	assert.Equal(t, uint32(2), b.ProcessedStates())
	assert.False(t, b.IsRealtime())

	require.NoError(t, b.Forward())
	require.NoError(t, b.Forward())
	require.NoError(t, b.Forward())
	assert.Equal(t, uint32(3), b.CurrentState())
	assert.Equal(t, uint32(3), b.ProcessedStates())
	assert.True(t, b.IsRealtime())
}

// Round trip: k forwards followed by k backwards restores the observable
// state, and re-walking forward reproduces the same snapshots.
func TestRoundTripOverMixedLog(t *testing.T) {
	b := seededBoard(t)
	b.Append(Draw{Player: 0, Cards: []CardInfo{{Code: 1234}, {Code: 5678}}})
	b.Append(UpdateCard{
		Reason:   ReasonMove,
		Previous: CardInfo{Controller: 0, Location: LocationHand, Sequence: 0},
		Current: CardInfo{
			Controller: 0, Location: LocationMonsterZone, Sequence: 2,
			Code: 1234, Position: PositionFaceUpAttack,
		},
	})
	b.Append(CounterChange{
		Place:   PlaceRef{Controller: 0, Location: LocationMonsterZone, Sequence: 2},
		Counter: Counter{Type: 7, Count: 2},
		Change:  CounterAdd,
	})
	b.Append(LpChange{Player: 1, Change: LpDamage, Amount: 2100})
	b.Append(NewTurn{TurnPlayer: 1})
	b.Append(RemoveCard{Card: CardInfo{Controller: 0, Location: LocationMonsterZone, Sequence: 2}})

	total := b.TotalStates()
	snapshots := make([]BoardView, 0, total+1)
	snapshots = append(snapshots, b.View())
	for i := 0; i < total; i++ {
		require.NoError(t, b.Forward())
		snapshots = append(snapshots, b.View())
	}

	for i := total - 1; i >= 0; i-- {
		require.NoError(t, b.Backward())
		view := b.View()
		view.ProcessedStates = snapshots[i].ProcessedStates
		view.Realtime = snapshots[i].Realtime
		assert.Equal(t, snapshots[i], view, "state %d", i)
	}

	// Forward again over recorded history; only the cursor metadata
	// differs from the first walk.
	for i := 1; i <= total; i++ {
		require.NoError(t, b.Forward())
		view := b.View()
		view.ProcessedStates = snapshots[i].ProcessedStates
		view.Realtime = snapshots[i].Realtime
		assert.Equal(t, snapshots[i], view, "re-walked state %d", i)
	}
}

func TestMalformedMessagesLeaveBoardUntouched(t *testing.T) {
	b := seededBoard(t)

	b.Append(UpdateCard{Reason: UpdateReason(99)})
	before := b.View()
	err := b.Forward()
	assert.ErrorIs(t, err, ErrMalformedMessage)
	assert.Equal(t, before, b.View())
	assert.Equal(t, uint32(0), b.CurrentState())
	assert.Equal(t, uint32(0), b.ProcessedStates())
}

func TestDrawBeyondDeckFails(t *testing.T) {
	b := NewBoard(nil)
	require.NoError(t, b.FillPile(0, LocationMainDeck, 1))
	b.Append(Draw{Player: 0, Cards: []CardInfo{{Code: 1}, {Code: 2}}})

	err := b.Forward()
	assert.ErrorIs(t, err, ErrMalformedMessage)
	deck, _ := b.Pile(0, LocationMainDeck)
	assert.Len(t, deck, 1)
	assert.Equal(t, uint32(0), b.CurrentState())
}

func TestMoveFromEmptySlotFails(t *testing.T) {
	b := NewBoard(nil)
	b.Append(UpdateCard{
		Reason:   ReasonMove,
		Previous: CardInfo{Controller: 0, Location: LocationMonsterZone, Sequence: 0},
		Current:  CardInfo{Controller: 0, Location: LocationGraveyard, Sequence: 0},
	})
	assert.ErrorIs(t, b.Forward(), ErrMissingCard)
	assert.Equal(t, uint32(0), b.CurrentState())
}
