package memory

import (
	"context"
	"sort"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/id"
	"spcledger/internal/domain/ledger"
)

// AddAccount registers or replaces an account in the chart of accounts.
func (s *Store) AddAccount(a ledger.Account) {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	s.accounts[a.ID] = a
}

// PostLines stores posted entry lines as the journal engine would.
func (s *Store) PostLines(lines ...ledger.EntryLine) {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	for _, l := range lines {
		s.lines[l.ID] = l
	}
}

// RemoveJournalEntry drops the lines of an unposted journal entry.
func (s *Store) RemoveJournalEntry(journalEntryID id.ID) {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	for lineID, l := range s.lines {
		if l.JournalEntryID == journalEntryID {
			delete(s.lines, lineID)
		}
	}
}

// GetEntryLine implements ledger.EntryLineReader.
func (s *Store) GetEntryLine(_ context.Context, lineID id.ID) (*ledger.EntryLine, error) {
	s.journalMu.RLock()
	defer s.journalMu.RUnlock()
	l, ok := s.lines[lineID]
	if !ok {
		return nil, apperror.NewNotFound("entry_line", lineID)
	}
	return &l, nil
}

// ListEntryLines implements ledger.EntryLineReader.
func (s *Store) ListEntryLines(_ context.Context, journalEntryID id.ID) ([]ledger.EntryLine, error) {
	s.journalMu.RLock()
	var out []ledger.EntryLine
	for _, l := range s.lines {
		if l.JournalEntryID == journalEntryID {
			out = append(out, l)
		}
	}
	s.journalMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LineNumber != out[j].LineNumber {
			return out[i].LineNumber < out[j].LineNumber
		}
		return id.Compare(out[i].ID, out[j].ID) < 0
	})
	return out, nil
}

// GetAccount implements ledger.AccountReader.
func (s *Store) GetAccount(_ context.Context, accountID id.ID) (*ledger.Account, error) {
	s.journalMu.RLock()
	defer s.journalMu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, apperror.NewNotFound("account", accountID)
	}
	return &a, nil
}

// ListAccounts implements ledger.AccountReader.
func (s *Store) ListAccounts(_ context.Context, companyID id.ID, ids []id.ID) ([]ledger.Account, error) {
	s.journalMu.RLock()
	defer s.journalMu.RUnlock()
	out := make([]ledger.Account, 0, len(ids))
	for _, accountID := range ids {
		if a, ok := s.accounts[accountID]; ok && a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	return out, nil
}

var (
	_ ledger.EntryLineReader = (*Store)(nil)
	_ ledger.AccountReader   = (*Store)(nil)
)
