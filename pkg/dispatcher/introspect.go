package dispatcher

// ProtocolVersion is the version of the call protocol this dispatcher speaks.
const ProtocolVersion = "1.0.0"

// ServiceInfo describes the service and its method catalogue.
type ServiceInfo struct {
	Name            string          `cbor:"name" json:"name"`
	ProtocolVersion string          `cbor:"protocolVersion" json:"protocolVersion"`
	Subject         string          `cbor:"subject" json:"subject"`
	RootPath        string          `cbor:"rootPath" json:"rootPath"`
	Interfaces      []InterfaceInfo `cbor:"interfaces" json:"interfaces"`
}

// InterfaceInfo lists the methods of one interface.
type InterfaceInfo struct {
	Name    string       `cbor:"name" json:"name"`
	Kind    string       `cbor:"kind" json:"kind"`
	Methods []MethodInfo `cbor:"methods" json:"methods"`
}

// MethodInfo describes one method.
type MethodInfo struct {
	Name           string   `cbor:"name" json:"name"`
	Signatures     []string `cbor:"signatures" json:"signatures"`
	ReplySignature string   `cbor:"replySignature" json:"replySignature"`
}

// Introspect describes the routing table.
func (d *Dispatcher) Introspect(name, subject string) *ServiceInfo {
	info := &ServiceInfo{
		Name:            name,
		ProtocolVersion: ProtocolVersion,
		Subject:         subject,
		RootPath:        RootPath,
	}
	for _, kind := range []ResourceKind{KindRoot, KindManager, KindStream, KindObject} {
		iface := InterfaceInfo{Name: kind.Interface(), Kind: kind.String()}
		for _, m := range catalogue {
			if m.kind != kind {
				continue
			}
			iface.Methods = append(iface.Methods, MethodInfo{
				Name:           m.name,
				Signatures:     append([]string(nil), m.signatures...),
				ReplySignature: m.replySignature(),
			})
		}
		info.Interfaces = append(info.Interfaces, iface)
	}
	return info
}
