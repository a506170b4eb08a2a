package packet

import (
	"sort"
	"strings"
)

// Named returns a byte packetizer described by the specified name, or nil if
// the name is unknown. The names currently understood are:
//
//	prefix32   -- corresponds to LengthPrefix{}
//	varint     -- corresponds to Varint{}
//	decimal    -- corresponds to Decimal{}
//	line       -- corresponds to Line
//	nul        -- corresponds to Split('\x00')
//	rs         -- corresponds to Split('\x1e')
//	lsp        -- corresponds to LSP
//	header:t   -- corresponds to Header(t)
//	s2:name    -- corresponds to Compress(Named(name), 0)
func Named(name string) Packetizer[[]byte] {
	if t, ok := strings.CutPrefix(name, "header:"); ok {
		return Header(t)
	}
	if base, ok := strings.CutPrefix(name, "s2:"); ok {
		if inner := Named(base); inner != nil {
			return Compress(inner, 0)
		}
		return nil
	}
	return framings[name]
}

// Names returns the plain names understood by Named, in lexicographic order.
// The parameterized forms "header:t" and "s2:name" are not included.
func Names() []string {
	names := make([]string, 0, len(framings))
	for name := range framings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var framings = map[string]Packetizer[[]byte]{
	"prefix32": LengthPrefix{},
	"varint":   Varint{},
	"decimal":  Decimal{},
	"line":     Line,
	"nul":      Split(0),
	"rs":       Split('\x1e'),
	"lsp":      LSP,
}
