package commsutil

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding: sorted map keys and the
// smallest integer encoding, so equal payloads produce equal bytes.
var encMode cbor.EncMode

// decMode ignores unknown fields. Untyped maps decode as map[string]any.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("commsutil: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("commsutil: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodePayload serializes a value to CBOR bytes.
func EncodePayload(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// DecodePayload deserializes CBOR bytes into the given target.
func DecodePayload(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose renders a payload in CBOR diagnostic notation for logs.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
