package persist

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/cachekit/persist/backend"
)

// functionIdentity derives the import-path-qualified name of fn, e.g.
// "github.com/acme/geo.Lookup". Method values carry a "-fm" suffix from
// the compiler, which is stripped so the identity is the method itself.
func functionIdentity(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Sprintf("%T", fn)
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return fmt.Sprintf("func@%#x", v.Pointer())
	}
	return strings.TrimSuffix(f.Name(), "-fm")
}

// deriveKey builds the cache key for one call: the function identity as a
// namespace prefix, then a 64-bit xxhash of the canonical msgpack
// encoding of the argument tuple. Positional order is significant (the
// arguments encode as a tuple); map arguments are order-independent
// because the canonical encoding sorts map keys. The key covers exactly
// the argument values received at the call site — Go call sites always
// pass resolved values, so there is no implicit-default ambiguity.
//
// Distinct argument tuples colliding on the same 64-bit hash silently
// share an entry. The canonical encoding keeps that probability at the
// hash's collision bound; it is documented, not eliminated.
func deriveKey(identity string, args []any) (string, error) {
	data, err := backend.CanonicalMarshal(args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%016x", identity, xxhash.Sum64(data)), nil
}
