package application

import (
	"fmt"

	"github.com/example/roster-draft/internal/persistence"
)

// partyShape is the standard 8-slot full party: 2 tanks, 2 healers, 4 DPS.
var partyShape = []string{"tank", "tank", "healer", "healer", "dps", "dps", "dps", "dps"}

// newEmptyRoster builds the roster shape every event starts with.
func newEmptyRoster() persistence.Roster {
	party := make([]persistence.PartySlot, len(partyShape))
	for i, role := range partyShape {
		party[i] = persistence.PartySlot{
			ID:   fmt.Sprintf("slot-%d", i+1),
			Role: role,
		}
	}
	return persistence.Roster{
		Party:      party,
		TotalSlots: len(party),
	}
}

// recomputeFilledSlots rederives FilledSlots from the party contents. The
// counter is never trusted independently.
func recomputeFilledSlots(roster *persistence.Roster) {
	filled := 0
	for _, slot := range roster.Party {
		if slot.AssignedParticipant != nil {
			filled++
		}
	}
	roster.FilledSlots = filled
	roster.TotalSlots = len(roster.Party)
}

// findSlot returns the index of the slot with the given id, or -1.
func findSlot(roster persistence.Roster, slotID string) int {
	for i, slot := range roster.Party {
		if slot.ID == slotID {
			return i
		}
	}
	return -1
}
