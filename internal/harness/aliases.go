package harness

import (
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/testutil"
)

// aliases maps scenario names to fixture values and back.
type aliases struct {
	values map[string]string // alias -> value
	names  map[string]string // value -> alias
}

func newAliases() *aliases {
	a := &aliases{values: map[string]string{}, names: map[string]string{}}
	for name, value := range map[string]string{
		"owner_a": testutil.OwnerA,
		"owner_b": testutil.OwnerB,
		"owner_c": testutil.OwnerC,
		"vault_a": testutil.VaultA,
		"vault_b": testutil.VaultB,
		"vault_c": testutil.VaultC,
		"mint":    testutil.Mint,
		"program": testutil.Program,
		"sig1":    testutil.Sig1,
		"sig2":    testutil.Sig2,
		"sig3":    testutil.Sig3,
		"sig4":    testutil.Sig4,
		"sig5":    testutil.Sig5,
		"sig6":    testutil.Sig6,
		"sig7":    testutil.Sig7,
		"sig8":    testutil.Sig8,
		"sig9":    testutil.Sig9,
		"sig10":   testutil.Sig10,
		"sig11":   testutil.Sig11,
		"sig12":   testutil.Sig12,
	} {
		a.bind(name, value)
	}
	return a
}

func (a *aliases) bind(name, value string) {
	a.values[name] = value
	a.names[value] = name
}

// resolve returns the value bound to s, or s itself.
func (a *aliases) resolve(s string) string {
	if v, ok := a.values[s]; ok {
		return v
	}
	return s
}

// name returns the alias bound to value, or value itself.
func (a *aliases) name(value string) string {
	if n, ok := a.names[value]; ok {
		return n
	}
	return value
}

// aliasPayload copies p with every bound string value replaced by its alias.
func (a *aliases) aliasPayload(p model.Payload) model.Payload {
	out := make(model.Payload, len(p))
	for k, v := range p {
		out[k] = a.aliasValue(v)
	}
	return out
}

func (a *aliases) aliasValue(v any) any {
	switch val := v.(type) {
	case string:
		return a.name(val)
	case model.Payload:
		return a.aliasPayload(val)
	case map[string]any:
		return map[string]any(a.aliasPayload(model.Payload(val)))
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = a.aliasValue(elem)
		}
		return out
	default:
		return v
	}
}

// resolveMap copies m with every string value resolved.
func (a *aliases) resolveMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = a.resolve(s)
			continue
		}
		out[k] = v
	}
	return out
}
