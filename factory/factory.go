// Package factory deploys vault instances at deterministic addresses and
// gates which modules they may delegate to.
package factory

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/etnz/folio"
)

// EIP-1167 minimal proxy creation code, around the 20 bytes implementation address.
var (
	cloneCodePrefix = common.FromHex("3d602d80600a3d3981f3363d3d373d3d3d363d73")
	cloneCodeSuffix = common.FromHex("5af43d82803e903d91602b57fd5bf3")
)

// CloneInitCode returns the creation code of a minimal proxy delegating to implementation.
func CloneInitCode(implementation common.Address) []byte {
	code := make([]byte, 0, len(cloneCodePrefix)+common.AddressLength+len(cloneCodeSuffix))
	code = append(code, cloneCodePrefix...)
	code = append(code, implementation.Bytes()...)
	return append(code, cloneCodeSuffix...)
}

// PredictAddress returns the CREATE2 address of a clone of 'implementation'
// deployed by 'deployer' with 'salt'.
func PredictAddress(deployer, implementation common.Address, salt [32]byte) common.Address {
	return crypto.CreateAddress2(deployer, salt, crypto.Keccak256(CloneInitCode(implementation)))
}

// Factory creates vault instances and keeps the list of approved modules.
// It is safe for concurrent use.
type Factory struct {
	address        common.Address
	owner          common.Address
	implementation common.Address

	mu        sync.Mutex
	approved  map[common.Address]bool
	instances map[common.Address]*folio.Instance
}

// New returns a factory living at 'address', administered by 'owner', cloning 'implementation'.
func New(address, owner, implementation common.Address) *Factory {
	return &Factory{
		address:        address,
		owner:          owner,
		implementation: implementation,
		approved:       make(map[common.Address]bool),
		instances:      make(map[common.Address]*folio.Instance),
	}
}

func (f *Factory) Address() common.Address        { return f.address }
func (f *Factory) Owner() common.Address          { return f.owner }
func (f *Factory) Implementation() common.Address { return f.implementation }

// ApproveModule allows instances to delegate to 'module'. Only the owner may call it.
func (f *Factory) ApproveModule(caller, module common.Address) error {
	return f.setApproval(caller, module, true)
}

// RevokeModule stops instances from delegating to 'module'. Only the owner may call it.
func (f *Factory) RevokeModule(caller, module common.Address) error {
	return f.setApproval(caller, module, false)
}

func (f *Factory) setApproval(caller, module common.Address, approved bool) error {
	if caller != f.owner {
		return fmt.Errorf("factory %s: %s is not the owner: %w", f.address.Hex(), caller.Hex(), folio.ErrNotAuthorized)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if approved {
		f.approved[module] = true
	} else {
		delete(f.approved, module)
	}
	return nil
}

// IsApproved reports whether instances may delegate to 'module'.
func (f *Factory) IsApproved(module common.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.approved[module]
}

// PredictAddress returns the address the instance created with 'salt' gets.
func (f *Factory) PredictAddress(salt [32]byte) common.Address {
	return PredictAddress(f.address, f.implementation, salt)
}

// CreateInstance deploys a vault instance at PredictAddress(salt), managed by
// 'manager' and delegating to 'module'. The module must be approved and
// initialized with 'basket'.
func (f *Factory) CreateInstance(salt [32]byte, manager common.Address, basket folio.Basket, module *folio.Module) (*folio.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if module == nil {
		return nil, fmt.Errorf("factory %s: module is missing", f.address.Hex())
	}
	if !f.approved[module.Address()] {
		return nil, fmt.Errorf("factory %s: module %s is not approved: %w", f.address.Hex(), module.Address().Hex(), folio.ErrNotAuthorized)
	}
	if module.Factory() != f.address {
		return nil, fmt.Errorf("factory %s: module %s belongs to factory %s: %w", f.address.Hex(), module.Address().Hex(), module.Factory().Hex(), folio.ErrNotAuthorized)
	}
	address := f.PredictAddress(salt)
	if _, exists := f.instances[address]; exists {
		return nil, fmt.Errorf("factory %s: instance %s already exists: %w", f.address.Hex(), address.Hex(), folio.ErrAlreadyInitialized)
	}
	instance, err := folio.NewInstance(address, manager, f.address, basket, module, f)
	if err != nil {
		return nil, err
	}
	f.instances[address] = instance
	return instance, nil
}

// Instance returns the instance deployed at 'address'.
func (f *Factory) Instance(address common.Address) (*folio.Instance, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	instance, ok := f.instances[address]
	return instance, ok
}

// Instances returns every deployed instance, sorted by address.
func (f *Factory) Instances() []*folio.Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]*folio.Instance, 0, len(f.instances))
	for _, instance := range f.instances {
		list = append(list, instance)
	}
	slices.SortFunc(list, func(a, b *folio.Instance) int {
		return bytes.Compare(a.Address().Bytes(), b.Address().Bytes())
	})
	return list
}
