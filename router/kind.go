// Package router provides the exchange routers a vault swaps through.
package router

import (
	"fmt"
	"net/http"

	"github.com/etnz/folio"
)

// Kind identifies a supported router implementation.
type Kind int

const (
	// PoolKind is a local set of constant-product pools persisted in a JSON file.
	PoolKind Kind = iota
	// RemoteKind is an exchange reached over HTTP.
	RemoteKind
)

func (k Kind) String() string {
	switch k {
	case PoolKind:
		return "pool"
	case RemoteKind:
		return "remote"
	default:
		return "unknown"
	}
}

// ParseKind parses a string into a Kind. The empty string is PoolKind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "pool", "":
		return PoolKind, nil
	case "remote":
		return RemoteKind, nil
	default:
		return 0, fmt.Errorf("unknown router kind: %q", s)
	}
}

// Open returns the router of the given kind. 'pools' is the pool state file of
// a PoolKind router, 'url' the endpoint of a RemoteKind one.
func Open(kind Kind, pools, url string, clock folio.Clock) (folio.Router, error) {
	switch kind {
	case PoolKind:
		if pools == "" {
			return nil, fmt.Errorf("%s router needs a pool state file", kind)
		}
		return LoadPools(pools, clock)
	case RemoteKind:
		if url == "" {
			return nil, fmt.Errorf("%s router needs a url", kind)
		}
		return NewRemote(url, new(http.Client)), nil
	default:
		return nil, fmt.Errorf("unsupported router kind %v", kind)
	}
}
