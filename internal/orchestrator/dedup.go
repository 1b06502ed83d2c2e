package orchestrator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/overthelex/secondlayer-sub006/internal/tools"
)

// deduper tracks tool invocations already executed within one request.
// Identity is the tool name plus a canonical hash of its arguments; for
// tools that declare primary keys only that argument subset participates,
// so cosmetic flag changes do not defeat the check.
type deduper struct {
	seen map[string]struct{}
}

func newDeduper() *deduper {
	return &deduper{seen: make(map[string]struct{})}
}

// key computes the stable identity of one invocation.
func (d *deduper) key(def tools.Def, call tools.Call) string {
	args := call.Args
	if len(def.PrimaryKeys) > 0 {
		subset := make(map[string]any, len(def.PrimaryKeys))
		for _, name := range def.PrimaryKeys {
			if v, ok := args[name]; ok {
				subset[name] = v
			}
		}
		args = subset
	}
	return fmt.Sprintf("%s:%016x", strings.TrimSpace(call.Name), xxh3.Hash(canonicalArgs(args)))
}

// isDuplicate reports whether the invocation was already seen and records it
// otherwise.
func (d *deduper) isDuplicate(def tools.Def, call tools.Call) bool {
	k := d.key(def, call)
	if _, ok := d.seen[k]; ok {
		return true
	}
	d.seen[k] = struct{}{}
	return false
}

// canonicalArgs serializes args with sorted keys so logically equal maps
// hash equal regardless of construction order.
func canonicalArgs(args map[string]any) []byte {
	if len(args) == 0 {
		return []byte("{}")
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		keyRaw, _ := json.Marshal(k)
		sb.Write(keyRaw)
		sb.WriteByte(':')
		valRaw, err := json.Marshal(args[k])
		if err != nil {
			valRaw, _ = json.Marshal(fmt.Sprintf("%v", args[k]))
		}
		sb.Write(valRaw)
	}
	sb.WriteByte('}')
	return []byte(sb.String())
}
