// Package folio implements a share based, multi asset vault.
//
// Depositors bring a single base asset. The vault splits it between the tokens
// of its basket according to their weights, buys them through a Router and
// issues shares proportional to the value brought in. Withdrawals burn shares,
// sell the depositor's part of every token back into the base asset and pay
// the proceeds, net of a management fee that accrues linearly on the
// depositor's principal.
//
// The accounting lives in a Module:
//   - ShareLedger: pro rata mint and burn of shares.
//   - FeeEngine: per depositor fee accrual and the reserve of withheld fees.
//   - SwapAdapter: deadline and minimum output enforcement around the router.
//
// An Instance is the address depositors talk to; it delegates every call to its
// Module as long as the factory that created it still approves that module.
//
// Every committed operation is an Event appended to the module Journal. The
// journal is persisted as JSONL (see EncodeJournal and LoadJournal) and Replay
// rebuilds a module from it, so that the `vaultctl` command-line tool has a
// single source of truth.
package folio
