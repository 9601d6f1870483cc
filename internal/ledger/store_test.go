package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/trx-referral-bot/internal/domain"
	"github.com/Proton-105/trx-referral-bot/internal/notify"
	"github.com/Proton-105/trx-referral-bot/internal/repository"
	"github.com/Proton-105/trx-referral-bot/internal/state"
)

// memStore mirrors the Postgres repository semantics in memory.
type memStore struct {
	mu          sync.Mutex
	users       map[int64]*domain.User
	withdrawals []*domain.Withdrawal
	failNext    error
	failCreate  error
}

var (
	_ repository.LedgerRepository = (*memStore)(nil)
	_ state.Storage               = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{users: make(map[int64]*domain.User)}
}

func (m *memStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memStore) Exists(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return false, err
	}
	_, ok := m.users[userID]
	return ok, nil
}

// Create applies the user insert and the inviter credit together, or neither when
// failCreate is set.
func (m *memStore) Create(_ context.Context, userID int64, inviterID *int64, reward, inviteReward decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failCreate; err != nil {
		m.failCreate = nil
		return false, err
	}
	if _, ok := m.users[userID]; ok {
		return false, repository.ErrAlreadyExists
	}

	var invitedBy *int64
	if inviterID != nil {
		if inviter, ok := m.users[*inviterID]; ok && *inviterID != userID {
			inviter.Balance = inviter.Balance.Add(inviteReward)
			inviter.Invites++
			id := *inviterID
			invitedBy = &id
		}
	}

	m.users[userID] = &domain.User{
		ID:              userID,
		Balance:         reward,
		InvitedBy:       invitedBy,
		WithdrawalState: string(state.StateIdle),
		CreatedAt:       time.Now(),
	}
	return invitedBy != nil, nil
}

func (m *memStore) GetBalanceAndInvites(_ context.Context, userID int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) Credit(_ context.Context, userID int64, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Balance = u.Balance.Add(amount)
	return nil
}

func (m *memStore) SubmitWithdrawal(_ context.Context, userID int64, wallet string, amount decimal.Decimal) (*domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if u.WithdrawalState != string(state.StateAwaitingWallet) {
		return nil, repository.ErrNotAwaitingWallet
	}
	if amount.GreaterThan(u.Balance) {
		return nil, repository.ErrInsufficientBalance
	}

	w := &domain.Withdrawal{
		ID:        int64(len(m.withdrawals) + 1),
		UserID:    userID,
		Wallet:    wallet,
		Amount:    amount,
		Status:    domain.WithdrawalPending,
		CreatedAt: time.Now(),
	}
	m.withdrawals = append(m.withdrawals, w)
	u.WithdrawalState = string(state.StateIdle)
	cp := *w
	return &cp, nil
}

func (m *memStore) ListPendingWithdrawals(_ context.Context, limit, offset int) ([]domain.Withdrawal, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []domain.Withdrawal
	for _, w := range m.withdrawals {
		if w.Status == domain.WithdrawalPending {
			pending = append(pending, *w)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

	total := len(pending)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return pending[offset:end], total, nil
}

func (m *memStore) GetWithdrawal(_ context.Context, id int64) (*domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.withdrawals {
		if w.ID == id {
			cp := *w
			return &cp, nil
		}
	}
	return nil, repository.ErrWithdrawalNotFound
}

func (m *memStore) ResolveWithdrawal(_ context.Context, id int64, status domain.WithdrawalStatus, adminID int64) (*domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.withdrawals {
		if w.ID != id {
			continue
		}
		if w.Status != domain.WithdrawalPending {
			return nil, repository.ErrWithdrawalResolved
		}
		if status == domain.WithdrawalApproved {
			u := m.users[w.UserID]
			if u.Balance.LessThan(w.Amount) {
				return nil, repository.ErrInsufficientBalance
			}
			u.Balance = u.Balance.Sub(w.Amount)
		}
		now := time.Now()
		w.Status = status
		w.ReviewedAt = &now
		w.ReviewedBy = &adminID
		cp := *w
		return &cp, nil
	}
	return nil, repository.ErrWithdrawalNotFound
}

func (m *memStore) AggregateStats(_ context.Context) (*domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.Stats{}
	for _, u := range m.users {
		stats.Users++
		stats.TotalBalance = stats.TotalBalance.Add(u.Balance)
		stats.TotalInvites += u.Invites
	}
	for _, w := range m.withdrawals {
		switch w.Status {
		case domain.WithdrawalPending:
			stats.PendingCount++
			stats.PendingAmount = stats.PendingAmount.Add(w.Amount)
		case domain.WithdrawalApproved:
			stats.ApprovedAmount = stats.ApprovedAmount.Add(w.Amount)
		}
	}
	return stats, nil
}

func (m *memStore) GetState(_ context.Context, userID int64) (*state.UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, state.ErrStateNotFound
	}
	return &state.UserState{UserID: userID, CurrentState: state.State(u.WithdrawalState)}, nil
}

func (m *memStore) SetState(_ context.Context, userID int64, us *state.UserState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return state.ErrStateNotFound
	}
	u.WithdrawalState = string(us.CurrentState)
	return nil
}

func (m *memStore) CountByState(_ context.Context) (map[state.State]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[state.State]int)
	for _, u := range m.users {
		counts[state.State(u.WithdrawalState)]++
	}
	return counts, nil
}

func (m *memStore) balance(userID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID].Balance
}

func (m *memStore) pendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.withdrawals {
		if w.Status == domain.WithdrawalPending {
			n++
		}
	}
	return n
}

// recorder captures notifications instead of sending them.
type recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recorder) Notify(_ context.Context, msgs ...notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msgs...)
}

func (r *recorder) keysFor(chatID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for _, m := range r.msgs {
		if m.ChatID == chatID {
			keys = append(keys, m.Key)
		}
	}
	return keys
}
