package host

import (
	"slices"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

// ModuleName is the import module guests link the bridge functions from.
const ModuleName = "c2pa"

// Guest exports the host calls back into.
const (
	CabiRealloc   = "cabi_realloc"
	StreamRead    = "c2pa_stream_read"
	StreamSeek    = "c2pa_stream_seek"
	StreamWrite   = "c2pa_stream_write"
	StreamRelease = "c2pa_stream_release"
	Sign          = "c2pa_sign"
)

// signature describes a function crossing the guest boundary in WIT terms.
// Strings and byte lists travel as (ptr, len); a nil pointer means absent.
type signature struct {
	params  []wit.Type
	results []wit.Type
}

var (
	handleT = wit.U32{}
	ptrT    = wit.U32{}
	sizeT   = wit.U32{}
	statusT = wit.S32{}
	textT   = wit.String{}
	bytesT  = &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}
)

// dispatchers are the guest exports that route a callback to the guest
// function bound to a context value.
var dispatchers = map[string]signature{
	CabiRealloc:   {params: []wit.Type{ptrT, sizeT, sizeT, sizeT}, results: []wit.Type{ptrT}},
	StreamRead:    {params: []wit.Type{ptrT, ptrT, sizeT}, results: []wit.Type{wit.S64{}}},
	StreamSeek:    {params: []wit.Type{ptrT, wit.S64{}, wit.S32{}}, results: []wit.Type{wit.S64{}}},
	StreamWrite:   {params: []wit.Type{ptrT, ptrT, sizeT}, results: []wit.Type{wit.S64{}}},
	StreamRelease: {params: []wit.Type{ptrT}},
	Sign:          {params: []wit.Type{ptrT, ptrT, sizeT, ptrT, sizeT}, results: []wit.Type{wit.S64{}}},
}

func (s signature) flatParams() []api.ValueType  { return flattenAll(s.params) }
func (s signature) flatResults() []api.ValueType { return flattenAll(s.results) }

// matches reports whether a guest function has the flattened shape of s.
func (s signature) matches(def api.FunctionDefinition) bool {
	return slices.Equal(def.ParamTypes(), s.flatParams()) && slices.Equal(def.ResultTypes(), s.flatResults())
}

func flattenAll(types []wit.Type) []api.ValueType {
	var out []api.ValueType
	for _, t := range types {
		out = append(out, flatten(t)...)
	}
	return out
}

// flatten lowers a WIT type to core wasm value types following the
// canonical ABI. Only the shapes used at this boundary are handled.
func flatten(t wit.Type) []api.ValueType {
	switch t := t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return []api.ValueType{api.ValueTypeI32}
	case wit.U64, wit.S64:
		return []api.ValueType{api.ValueTypeI64}
	case wit.F32:
		return []api.ValueType{api.ValueTypeF32}
	case wit.F64:
		return []api.ValueType{api.ValueTypeF64}
	case wit.String:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	case *wit.TypeDef:
		switch kind := t.Kind.(type) {
		case *wit.List:
			return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
		case *wit.Option:
			return append([]api.ValueType{api.ValueTypeI32}, flatten(kind.Type)...)
		case *wit.Enum, *wit.Flags:
			return []api.ValueType{api.ValueTypeI32}
		}
	}
	return nil
}
