package woodchuck

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/morezero/woodchuck/pkg/wire"
)

const versionsSignature = "(stub)"

type propertySpec struct {
	sig      string
	required bool
}

var managerProperties = map[string]propertySpec{
	"HumanReadableName": {sig: "s", required: true},
	"DBusServiceName":   {sig: "s"},
	"DBusObject":        {sig: "s"},
	"Cookie":            {sig: "s"},
	"Priority":          {sig: "u"},
}

var streamProperties = map[string]propertySpec{
	"HumanReadableName":   {sig: "s", required: true},
	"Cookie":              {sig: "s"},
	"Priority":            {sig: "u"},
	"Freshness":           {sig: "u"},
	"ObjectsMostlyInline": {sig: "b"},
}

var objectProperties = map[string]propertySpec{
	"HumanReadableName": {sig: "s", required: true},
	"Cookie":            {sig: "s"},
	"Filename":          {sig: "s"},
	"Wakeup":            {sig: "b"},
	"TriggerTarget":     {sig: "t"},
	"TriggerEarliest":   {sig: "t"},
	"TriggerLatest":     {sig: "t"},
	"DownloadFrequency": {sig: "u"},
	"Priority":          {sig: "u"},
	"Versions":          {sig: "a" + versionsSignature},
}

// properties holds a validated property bag. Values are string, uint32,
// uint64, bool or []Version according to the property's declared type.
type properties map[string]any

// parseProperties checks bag against specs and converts each value to its
// declared type. Keys are checked in sorted order so the first error
// reported does not depend on map iteration.
func parseProperties(specs map[string]propertySpec, bag PropertyBag) (properties, error) {
	out := make(properties, len(bag))
	for _, key := range bag.Keys() {
		spec, ok := specs[key]
		if !ok {
			return nil, Errorf(KindInvalidArgs, "Unknown property: %s", key)
		}
		v, ok := coerce(spec.sig, bag[key])
		if !ok {
			return nil, Errorf(KindInvalidArgs, "Argument has unsupported type: %s", key)
		}
		out[key] = v
	}

	var missing []string
	for key, spec := range specs {
		if _, ok := out[key]; spec.required && !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, Errorf(KindInvalidArgs, "Missing required properties: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// coerce converts v to the Go type for sig. Strings, as sent in an a{ss}
// bag, are parsed for scalar types.
func coerce(sig string, v wire.Value) (any, bool) {
	switch sig {
	case "s":
		s, ok := v.(wire.Str)
		return string(s), ok
	case "u":
		switch x := v.(type) {
		case wire.U32:
			return uint32(x), true
		case wire.U64:
			if x > math.MaxUint32 {
				return nil, false
			}
			return uint32(x), true
		case wire.Str:
			n, err := strconv.ParseUint(string(x), 10, 32)
			return uint32(n), err == nil
		}
	case "t":
		switch x := v.(type) {
		case wire.U64:
			return uint64(x), true
		case wire.U32:
			return uint64(x), true
		case wire.Str:
			n, err := strconv.ParseUint(string(x), 10, 64)
			return n, err == nil
		}
	case "b":
		switch x := v.(type) {
		case wire.Bool:
			return bool(x), true
		case wire.Str:
			switch x {
			case "true", "1":
				return true, true
			case "false", "0":
				return false, true
			}
		}
	case "a" + versionsSignature:
		return versions(v)
	}
	return nil, false
}

func versions(v wire.Value) ([]Version, bool) {
	arr, ok := v.(wire.Array)
	if !ok {
		return nil, false
	}
	if len(arr.Elems) > 0 && arr.ElemSig != versionsSignature {
		return nil, false
	}
	out := make([]Version, 0, len(arr.Elems))
	for _, elem := range arr.Elems {
		s, ok := elem.(wire.Struct)
		if !ok || len(s) != 4 {
			return nil, false
		}
		url, ok1 := s[0].(wire.Str)
		size, ok2 := s[1].(wire.U64)
		utility, ok3 := s[2].(wire.U32)
		simple, ok4 := s[3].(wire.Bool)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, false
		}
		out = append(out, Version{
			URL:                 string(url),
			ExpectedSize:        uint64(size),
			Utility:             uint32(utility),
			UseSimpleDownloader: bool(simple),
		})
	}
	return out, true
}

func (p properties) str(key string) *string {
	if v, ok := p[key].(string); ok {
		return &v
	}
	return nil
}

// integer returns a u or t property widened for storage.
func (p properties) integer(key string) *int64 {
	switch v := p[key].(type) {
	case uint32:
		n := int64(v)
		return &n
	case uint64:
		n := int64(v)
		return &n
	}
	return nil
}

func (p properties) boolean(key string) *bool {
	if v, ok := p[key].(bool); ok {
		return &v
	}
	return nil
}

func (p properties) versions() []Version {
	v, _ := p["Versions"].([]Version)
	return v
}

func (p properties) name() string {
	v, _ := p["HumanReadableName"].(string)
	return v
}
