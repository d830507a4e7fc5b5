package dispatcher

import (
	"fmt"
	"strings"
)

// RootPath is the object path of the root resource.
const RootPath = "/org/woodchuck"

// Interface names, one per resource kind.
const (
	InterfaceRoot    = "org.woodchuck"
	InterfaceManager = "org.woodchuck.manager"
	InterfaceStream  = "org.woodchuck.stream"
	InterfaceObject  = "org.woodchuck.object"
)

// ResourceKind is the kind of resource a path names.
type ResourceKind int

const (
	KindRoot ResourceKind = iota
	KindManager
	KindStream
	KindObject
)

var kindSegments = []struct {
	kind    ResourceKind
	segment string
}{
	{KindManager, "manager/"},
	{KindStream, "stream/"},
	{KindObject, "object/"},
}

func (k ResourceKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindManager:
		return "manager"
	case KindStream:
		return "stream"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Interface returns the interface bound to the kind.
func (k ResourceKind) Interface() string {
	switch k {
	case KindManager:
		return InterfaceManager
	case KindStream:
		return InterfaceStream
	case KindObject:
		return InterfaceObject
	}
	return InterfaceRoot
}

// ResourcePath is a resolved object path. ID is empty for the root.
type ResourcePath struct {
	Kind ResourceKind
	ID   string
}

// String returns the absolute object path.
func (p ResourcePath) String() string {
	if p.Kind == KindRoot {
		return RootPath
	}
	return RootPath + "/" + p.Kind.String() + "/" + p.ID
}

// ObjectPath returns the absolute path of the resource with the given kind and id.
func ObjectPath(kind ResourceKind, id string) string {
	return ResourcePath{Kind: kind, ID: id}.String()
}

var errNoSuchObject = fmt.Errorf("no such object")

// ResolvePath resolves an absolute object path.
func ResolvePath(path string) (ResourcePath, error) {
	rest, ok := strings.CutPrefix(path, RootPath)
	if !ok {
		return ResourcePath{}, errNoSuchObject
	}
	if rest == "" {
		return ResourcePath{Kind: KindRoot}, nil
	}
	rel, ok := strings.CutPrefix(rest, "/")
	if !ok || rel == "" {
		return ResourcePath{}, errNoSuchObject
	}
	return ParseResourcePath(rel)
}

// ParseResourcePath resolves a path relative to RootPath: "" for the root,
// or one of "manager/", "stream/", "object/" followed by lowercase hex
// filling the rest of the string.
func ParseResourcePath(rel string) (ResourcePath, error) {
	if rel == "" {
		return ResourcePath{Kind: KindRoot}, nil
	}
	for _, ks := range kindSegments {
		id, ok := strings.CutPrefix(rel, ks.segment)
		if !ok {
			continue
		}
		if !isLowerHex(id) {
			return ResourcePath{}, errNoSuchObject
		}
		return ResourcePath{Kind: ks.kind, ID: id}, nil
	}
	return ResourcePath{}, errNoSuchObject
}

func isLowerHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
