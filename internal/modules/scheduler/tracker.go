// README: Progress tracker for one order: stage index per proposal occurrence.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"brigade/internal/modules/catalog"
	"brigade/internal/modules/order"
	"brigade/internal/types"
)

type Catalog interface {
	Proposal(ctx context.Context, id types.ID) (*catalog.Proposal, error)
	Menu(ctx context.Context, id types.ID) (*catalog.Menu, error)
}

// Tracker is not safe for concurrent use; the owning session serializes access.
//
// Repeated references to the same proposal (or menu) in one order collapse into a
// single occurrence. Proposals without stages are never tracked.
type Tracker struct {
	orderID types.ID

	// scan order and membership
	proposals   []types.ID
	menus       []types.ID
	composition map[types.ID][]types.ID

	standalone map[types.ID]int
	inMenus    map[types.ID]map[types.ID]int
	stages     map[types.ID][]string
}

// NewTracker starts every occurrence of the order at stage 0.
func NewTracker(ctx context.Context, o *order.Order, cat Catalog) (*Tracker, error) {
	t := &Tracker{
		orderID:     o.ID,
		composition: make(map[types.ID][]types.ID),
		standalone:  make(map[types.ID]int),
		inMenus:     make(map[types.ID]map[types.ID]int),
		stages:      make(map[types.ID][]string),
	}

	seen := make(map[types.ID]bool)
	for _, pid := range o.Proposals {
		if seen[pid] {
			continue
		}
		seen[pid] = true
		n, err := t.loadStages(ctx, cat, pid)
		if err != nil {
			return nil, err
		}
		t.proposals = append(t.proposals, pid)
		if n > 0 {
			t.standalone[pid] = 0
		}
	}

	for _, mid := range o.Menus {
		if _, ok := t.composition[mid]; ok {
			continue
		}
		m, err := cat.Menu(ctx, mid)
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: menu %s", ErrInvalidReference, mid)
		}
		if err != nil {
			return nil, err
		}
		t.menus = append(t.menus, mid)
		t.composition[mid] = append([]types.ID(nil), m.Proposals...)

		progress := make(map[types.ID]int)
		for _, pid := range m.Proposals {
			n, err := t.loadStages(ctx, cat, pid)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				progress[pid] = 0
			}
		}
		if len(progress) > 0 {
			t.inMenus[mid] = progress
		}
	}
	return t, nil
}

func (t *Tracker) loadStages(ctx context.Context, cat Catalog, pid types.ID) (int, error) {
	if st, ok := t.stages[pid]; ok {
		return len(st), nil
	}
	p, err := cat.Proposal(ctx, pid)
	if errors.Is(err, catalog.ErrNotFound) {
		return 0, fmt.Errorf("%w: proposal %s", ErrInvalidReference, pid)
	}
	if err != nil {
		return 0, err
	}
	t.stages[pid] = append([]string(nil), p.Stages...)
	return len(p.Stages), nil
}

func (t *Tracker) OrderID() types.ID {
	return t.orderID
}

// NextStep scans standalone proposals first, then menus, each in order-list order.
func (t *Tracker) NextStep() (ProposalStep, bool) {
	for _, pid := range t.proposals {
		if idx, ok := t.standalone[pid]; ok {
			return ProposalStep{ProposalID: pid, Stage: t.stages[pid][idx], StageIndex: idx}, true
		}
	}
	for _, mid := range t.menus {
		progress, ok := t.inMenus[mid]
		if !ok {
			continue
		}
		for _, pid := range t.composition[mid] {
			if idx, ok := progress[pid]; ok {
				menuID := mid
				return ProposalStep{ProposalID: pid, MenuID: &menuID, Stage: t.stages[pid][idx], StageIndex: idx}, true
			}
		}
	}
	return ProposalStep{}, false
}

// Advance moves the occurrence one stage forward and drops it once all stages are done.
// It returns false when the occurrence is not tracked.
func (t *Tracker) Advance(proposalID types.ID, menuID *types.ID) bool {
	total := len(t.stages[proposalID])
	if menuID == nil {
		idx, ok := t.standalone[proposalID]
		if !ok {
			return false
		}
		if idx+1 >= total {
			delete(t.standalone, proposalID)
		} else {
			t.standalone[proposalID] = idx + 1
		}
		return true
	}

	progress, ok := t.inMenus[*menuID]
	if !ok {
		return false
	}
	idx, ok := progress[proposalID]
	if !ok {
		return false
	}
	if idx+1 >= total {
		delete(progress, proposalID)
		if len(progress) == 0 {
			delete(t.inMenus, *menuID)
		}
	} else {
		progress[proposalID] = idx + 1
	}
	return true
}

// CurrentIndex returns the stage index the occurrence is waiting on.
func (t *Tracker) CurrentIndex(proposalID types.ID, menuID *types.ID) (int, bool) {
	if menuID == nil {
		idx, ok := t.standalone[proposalID]
		return idx, ok
	}
	idx, ok := t.inMenus[*menuID][proposalID]
	return idx, ok
}

func (t *Tracker) IsProposalComplete(proposalID types.ID, menuID *types.ID) (bool, error) {
	if menuID == nil {
		if !containsID(t.proposals, proposalID) {
			return false, fmt.Errorf("%w: proposal %s not in order %s", ErrInvalidReference, proposalID, t.orderID)
		}
		_, pending := t.standalone[proposalID]
		return !pending, nil
	}

	members, ok := t.composition[*menuID]
	if !ok {
		return false, fmt.Errorf("%w: menu %s not in order %s", ErrInvalidReference, *menuID, t.orderID)
	}
	if !containsID(members, proposalID) {
		return false, fmt.Errorf("%w: proposal %s not in menu %s", ErrInvalidReference, proposalID, *menuID)
	}
	_, pending := t.inMenus[*menuID][proposalID]
	return !pending, nil
}

func (t *Tracker) IsComplete() bool {
	return len(t.standalone) == 0 && len(t.inMenus) == 0
}

type OccurrenceProgress struct {
	ProposalID  types.ID  `json:"proposal_id"`
	MenuID      *types.ID `json:"menu_id,omitempty"`
	StageIndex  int       `json:"stage_index"`
	TotalStages int       `json:"total_stages"`
	Done        bool      `json:"done"`
}

type TrackerSnapshot struct {
	OrderID     types.ID             `json:"order_id"`
	Complete    bool                 `json:"complete"`
	Occurrences []OccurrenceProgress `json:"occurrences"`
}

// Snapshot lists every occurrence in scan order, finished ones included.
func (t *Tracker) Snapshot() TrackerSnapshot {
	snap := TrackerSnapshot{OrderID: t.orderID, Complete: t.IsComplete()}
	for _, pid := range t.proposals {
		total := len(t.stages[pid])
		idx, pending := t.standalone[pid]
		if !pending {
			idx = total
		}
		snap.Occurrences = append(snap.Occurrences, OccurrenceProgress{
			ProposalID: pid, StageIndex: idx, TotalStages: total, Done: !pending,
		})
	}
	for _, mid := range t.menus {
		for _, pid := range t.composition[mid] {
			total := len(t.stages[pid])
			idx, pending := t.inMenus[mid][pid]
			if !pending {
				idx = total
			}
			menuID := mid
			snap.Occurrences = append(snap.Occurrences, OccurrenceProgress{
				ProposalID: pid, MenuID: &menuID, StageIndex: idx, TotalStages: total, Done: !pending,
			})
		}
	}
	return snap
}

func containsID(ids []types.ID, id types.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
