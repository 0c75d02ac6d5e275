package folio

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Approver tells whether a module may serve vault instances. The factory implements it.
type Approver interface {
	IsApproved(module common.Address) bool
}

// Instance is a deployed vault: an address, a manager and a module holding the
// business logic. Every operation is delegated to the module while the factory
// still approves it.
type Instance struct {
	address  common.Address
	manager  common.Address
	factory  common.Address
	module   *Module
	approver Approver
}

// NewInstance binds an initialized module to a new instance. The module basket
// must be 'basket', and a module serves a single instance.
func NewInstance(address, manager, factory common.Address, basket Basket, module *Module, approver Approver) (*Instance, error) {
	var errs error
	if address == (common.Address{}) {
		errs = errors.Join(errs, errors.New("instance address is zero"))
	}
	if manager == (common.Address{}) {
		errs = errors.Join(errs, errors.New("manager address is zero"))
	}
	if module == nil {
		errs = errors.Join(errs, errors.New("module is missing"))
	}
	if approver == nil {
		errs = errors.Join(errs, errors.New("approver is missing"))
	}
	if errs != nil {
		return nil, fmt.Errorf("invalid instance: %w", errs)
	}
	if !module.Basket().Equal(basket) {
		return nil, fmt.Errorf("instance %s: basket differs from module %s basket: %w", address.Hex(), module.Address().Hex(), ErrInvalidBasket)
	}
	if err := module.bind(address); err != nil {
		return nil, fmt.Errorf("instance %s: %w", address.Hex(), err)
	}
	return &Instance{
		address:  address,
		manager:  manager,
		factory:  factory,
		module:   module,
		approver: approver,
	}, nil
}

func (v *Instance) Address() common.Address { return v.address }
func (v *Instance) Manager() common.Address { return v.manager }
func (v *Instance) Factory() common.Address { return v.factory }
func (v *Instance) Module() *Module         { return v.module }

// delegate returns the module if the factory still approves it.
func (v *Instance) delegate() (*Module, error) {
	if !v.approver.IsApproved(v.module.Address()) {
		return nil, fmt.Errorf("instance %s: module %s is not approved: %w", v.address.Hex(), v.module.Address().Hex(), ErrNotAuthorized)
	}
	return v.module, nil
}

// Deposit delegates to Module.Deposit.
func (v *Instance) Deposit(ctx context.Context, depositor, baseAsset common.Address, buyPaths [][]common.Address, amount Amount, opts ...SwapOption) (Deposited, error) {
	m, err := v.delegate()
	if err != nil {
		return Deposited{}, err
	}
	return m.Deposit(ctx, depositor, baseAsset, buyPaths, amount, opts...)
}

// Withdraw delegates to Module.Withdraw.
func (v *Instance) Withdraw(ctx context.Context, depositor, baseAsset common.Address, sellPaths [][]common.Address, shares Amount, opts ...SwapOption) (Withdrawn, error) {
	m, err := v.delegate()
	if err != nil {
		return Withdrawn{}, err
	}
	return m.Withdraw(ctx, depositor, baseAsset, sellPaths, shares, opts...)
}

// Shares returns the share balance of a depositor.
func (v *Instance) Shares(depositor common.Address) Amount { return v.module.Shares(depositor) }

// FeeAccrued returns the fee the depositor owes now.
func (v *Instance) FeeAccrued(depositor common.Address) Amount {
	return v.module.FeeAccrued(depositor)
}

// TotalFeeAccrued returns the fees settled and not claimed yet.
func (v *Instance) TotalFeeAccrued() Amount { return v.module.TotalFeeAccrued() }

// ClaimFees releases the withheld fees to 'to'. Only the manager may call it.
func (v *Instance) ClaimFees(caller, to common.Address) (FeesClaimed, error) {
	if caller != v.manager {
		return FeesClaimed{}, fmt.Errorf("instance %s: %s is not the manager: %w", v.address.Hex(), caller.Hex(), ErrNotAuthorized)
	}
	m, err := v.delegate()
	if err != nil {
		return FeesClaimed{}, err
	}
	if to == (common.Address{}) {
		to = v.manager
	}
	return m.claimFees(to)
}

// Summary returns a snapshot of the vault.
func (v *Instance) Summary() Summary { return v.module.Summary() }
