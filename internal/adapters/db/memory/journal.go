package memory

import (
	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// journalEntry is a modification of the store that can be reverted when the
// unit of work it belongs to fails.
type journalEntry interface {
	revert(*Store)
}

// journal records the changes applied by one Update call.
type journal struct {
	entries []journalEntry
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

// revert undoes every recorded change, newest first.
func (j *journal) revert(s *Store) {
	for i := len(j.entries) - 1; i >= 0; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:0]
}

type (
	identityCreateChange struct {
		id  uint64
		did string
	}
	identityUpdateChange struct {
		prev domain.AgentIdentity
	}
	feedbackCreateChange struct {
		id      uint64
		agentID uint64
	}
	reputationChange struct {
		prev    domain.ReputationState
		existed bool
	}
	accountCreateChange struct {
		id      uint64
		agentID uint64
	}
	accountUpdateChange struct {
		prev domain.TreasuryAccount
	}
	paymentCreateChange struct {
		id   uint64
		from uint64
		to   uint64
	}
	totalsChange struct {
		prev domain.LedgerTotals
	}
	operatorChange struct {
		addr    common.Address
		enabled bool
	}
	eventAppendChange struct{}
)

func (ch identityCreateChange) revert(s *Store) {
	delete(s.identities, ch.id)
	delete(s.didIndex, ch.did)
	s.nextIdentity = ch.id
}

func (ch identityUpdateChange) revert(s *Store) {
	s.identities[ch.prev.ID] = ch.prev
}

func (ch feedbackCreateChange) revert(s *Store) {
	delete(s.feedback, ch.id)
	s.feedbackByAgent[ch.agentID] = dropLast(s.feedbackByAgent[ch.agentID])
	if len(s.feedbackByAgent[ch.agentID]) == 0 {
		delete(s.feedbackByAgent, ch.agentID)
	}
	s.nextFeedback = ch.id
}

func (ch reputationChange) revert(s *Store) {
	if !ch.existed {
		delete(s.reputation, ch.prev.AgentID)
		return
	}
	s.reputation[ch.prev.AgentID] = ch.prev
}

func (ch accountCreateChange) revert(s *Store) {
	delete(s.accounts, ch.id)
	delete(s.accountByAgent, ch.agentID)
	s.nextAccount = ch.id
}

func (ch accountUpdateChange) revert(s *Store) {
	s.accounts[ch.prev.ID] = ch.prev
}

func (ch paymentCreateChange) revert(s *Store) {
	delete(s.payments, ch.id)
	s.paymentsByAccount[ch.from] = dropLast(s.paymentsByAccount[ch.from])
	if ch.to != ch.from {
		s.paymentsByAccount[ch.to] = dropLast(s.paymentsByAccount[ch.to])
	}
	s.nextPayment = ch.id
}

func (ch totalsChange) revert(s *Store) {
	s.totals = ch.prev
}

func (ch operatorChange) revert(s *Store) {
	if ch.enabled {
		s.operators[ch.addr] = struct{}{}
		return
	}
	delete(s.operators, ch.addr)
}

func (ch eventAppendChange) revert(s *Store) {
	s.events = s.events[:len(s.events)-1]
}

func dropLast(ids []uint64) []uint64 {
	if len(ids) == 0 {
		return ids
	}
	return ids[:len(ids)-1]
}
