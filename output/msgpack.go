package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"github.com/pgtelemetry/collector/state"
)

// MsgpackAdapter encodes the snapshot as MessagePack, with the same field
// names and omissions as its JSON form
type MsgpackAdapter struct{}

func NewMsgpackAdapter() *MsgpackAdapter {
	return &MsgpackAdapter{}
}

func (a *MsgpackAdapter) Name() string {
	return "msgpack"
}

func (a *MsgpackAdapter) Serialize(snapshot state.MultiInstanceSnapshot) ([]byte, string, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, "", err
	}

	var tree interface{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	err = decoder.Decode(&tree)
	if err != nil {
		return nil, "", err
	}

	out, err := appendValue(nil, tree)
	if err != nil {
		return nil, "", err
	}

	return out, "application/msgpack", nil
}

// appendValue writes a decoded JSON tree. Integers stay integers, so 64-bit
// query IDs survive without float rounding.
func appendValue(b []byte, value interface{}) ([]byte, error) {
	var err error

	switch v := value.(type) {
	case nil:
		return msgp.AppendNil(b), nil
	case bool:
		return msgp.AppendBool(b, v), nil
	case string:
		return msgp.AppendString(b, v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return msgp.AppendInt64(b, i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return msgp.AppendFloat64(b, f), nil
	case []interface{}:
		b = msgp.AppendArrayHeader(b, uint32(len(v)))
		for _, item := range v {
			b, err = appendValue(b, item)
			if err != nil {
				return nil, err
			}
		}
		return b, nil
	case map[string]interface{}:
		b = msgp.AppendMapHeader(b, uint32(len(v)))
		for _, key := range sortedKeys(v) {
			b = msgp.AppendString(b, key)
			b, err = appendValue(b, v[key])
			if err != nil {
				return nil, err
			}
		}
		return b, nil
	}

	return nil, fmt.Errorf("unexpected value of type %T", value)
}
