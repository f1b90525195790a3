package coordinator

import (
	"fmt"

	"github.com/pandodao/generic"
	"github.com/zyedidia/generic/mapset"
)

type Operation string

const (
	OpInitialize Operation = "initialize"
	OpLogin      Operation = "login"
	OpLogout     Operation = "logout"
	OpDerive     Operation = "derive_address"
	OpDeposit    Operation = "deposit"
	OpTransfer   Operation = "transfer"
)

type Refresh string

const (
	RefreshBalance Refresh = "balance"
	RefreshAddress Refresh = "address"
)

// RefreshPolicy lists, per operation, the reads run in order once the
// operation succeeded.
type RefreshPolicy map[Operation][]Refresh

func DefaultRefreshPolicy() RefreshPolicy {
	return RefreshPolicy{
		OpInitialize: {RefreshBalance},
		OpLogin:      {RefreshAddress, RefreshBalance},
		OpDeposit:    {RefreshBalance},
		OpTransfer:   {RefreshBalance},
	}
}

func (p RefreshPolicy) For(op Operation) []Refresh {
	return p[op]
}

// ParseRefreshPolicy builds a policy from config values like
// {"deposit": ["balance"]}. Operations left out keep their default refreshes,
// repeated refreshes are dropped.
func ParseRefreshPolicy(raw map[string][]string) (RefreshPolicy, error) {
	policy := DefaultRefreshPolicy()

	for name, values := range raw {
		op := Operation(name)
		switch op {
		case OpInitialize, OpLogin, OpDeposit, OpTransfer:
		default:
			return nil, fmt.Errorf("unknown operation %q in refresh policy", name)
		}

		seen := mapset.New[Refresh]()
		refreshes := []Refresh{}
		for _, r := range generic.MapSlice(values, func(v string) Refresh { return Refresh(v) }) {
			if r != RefreshBalance && r != RefreshAddress {
				return nil, fmt.Errorf("unknown refresh %q for %s", r, op)
			}

			if seen.Has(r) {
				continue
			}

			seen.Put(r)
			refreshes = append(refreshes, r)
		}

		policy[op] = refreshes
	}

	return policy, nil
}
