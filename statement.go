package folio

import (
	"bytes"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Account is a depositor's position in a vault.
type Account struct {
	Depositor   common.Address `json:"depositor"`
	Shares      Amount         `json:"shares"`
	Principal   Amount         `json:"principal"`   // base currency backing the shares, for fee purposes
	LastAccrual uint64         `json:"lastAccrual"` // unix seconds
	FeeAccrued  Amount         `json:"feeAccrued"`  // fee owed at the statement time, settled or not
}

// Summary is a snapshot of a vault.
type Summary struct {
	Time            time.Time      `json:"time"`
	Module          common.Address `json:"module"`
	Instance        common.Address `json:"instance"`
	Factory         common.Address `json:"factory"`
	BaseAsset       common.Address `json:"baseAsset"`
	Assets          []Asset        `json:"assets"`
	Holdings        []Amount       `json:"holdings"` // per asset, in basket order
	Idle            Amount         `json:"idle"`
	TotalShares     Amount         `json:"totalShares"`
	BaseValue       Amount         `json:"baseValue"`
	FeeRate         Amount         `json:"feeRate"`
	TotalFeeAccrued Amount         `json:"totalFeeAccrued"`
	FeeReserve      Amount         `json:"feeReserve"`
	Accounts        []Account      `json:"accounts"` // sorted by depositor address
}

// Initialized reports whether the module has been configured.
func (m *Module) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// Basket returns the configured basket. It is the zero Basket before initialization.
func (m *Module) Basket() Basket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.basket
}

// Factory returns the address of the factory the module was configured with.
func (m *Module) Factory() common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.factory
}

// BaseAsset returns the base currency token, zero until the first deposit.
func (m *Module) BaseAsset() common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base
}

// Shares returns the share balance of a depositor.
func (m *Module) Shares(depositor common.Address) Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Shares(depositor)
}

// TotalShares returns the number of outstanding shares.
func (m *Module) TotalShares() Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.TotalShares()
}

// FeeAccrued returns the fee the depositor owes now, including the part not settled yet.
func (m *Module) FeeAccrued(depositor common.Address) Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return Amount{}
	}
	return m.fees.FeeAccrued(depositor, timestamp(m.clock))
}

// TotalFeeAccrued returns the fees settled across all depositors and not claimed yet.
func (m *Module) TotalFeeAccrued() Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return Amount{}
	}
	return m.fees.TotalAccrued()
}

// FeeReserve returns the fees withheld from withdrawals and not claimed yet.
func (m *Module) FeeReserve() Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return Amount{}
	}
	return m.fees.Reserve()
}

// Holdings returns the amount held of every basket asset, in basket order.
func (m *Module) Holdings() []Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.holdings)
}

// Account returns the position of a depositor, and false if it never deposited.
func (m *Module) Account(depositor common.Address) (Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized || !m.ledger.Known(depositor) {
		return Account{}, false
	}
	return m.account(depositor, timestamp(m.clock)), true
}

func (m *Module) account(depositor common.Address, now uint64) Account {
	return Account{
		Depositor:   depositor,
		Shares:      m.ledger.Shares(depositor),
		Principal:   m.fees.Principal(depositor),
		LastAccrual: m.fees.LastAccrual(depositor),
		FeeAccrued:  m.fees.FeeAccrued(depositor, now),
	}
}

// Events returns the journal of the module, oldest first.
func (m *Module) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journal.Events()
}

// EventsSince returns the events committed after the first n, oldest first.
func (m *Module) EventsSince(n int) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journal.Since(n)
}

// Summary returns a snapshot of the vault at the clock time.
func (m *Module) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	s := Summary{
		Time:      now.UTC(),
		Module:    m.address,
		Instance:  m.instance,
		Factory:   m.factory,
		BaseAsset: m.base,
		Assets:    m.basket.Assets(),
		Holdings:  slices.Clone(m.holdings),
		Idle:      m.idle,
	}
	if !m.initialized {
		return s
	}
	s.TotalShares = m.ledger.TotalShares()
	s.BaseValue = m.ledger.BaseValue()
	s.FeeRate = m.fees.Rate()
	s.TotalFeeAccrued = m.fees.TotalAccrued()
	s.FeeReserve = m.fees.Reserve()

	depositors := make([]common.Address, 0, len(m.ledger.shares))
	for d := range m.ledger.shares {
		depositors = append(depositors, d)
	}
	slices.SortFunc(depositors, func(a, b common.Address) int { return bytes.Compare(a[:], b[:]) })
	at := timestamp(m.clock)
	for _, d := range depositors {
		s.Accounts = append(s.Accounts, m.account(d, at))
	}
	return s
}

// Account returns the position of a depositor in the summary, and false if it is not listed.
func (s Summary) Account(depositor common.Address) (Account, bool) {
	for _, a := range s.Accounts {
		if a.Depositor == depositor {
			return a, true
		}
	}
	return Account{}, false
}
