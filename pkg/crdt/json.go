package crdt

import (
	"encoding/json"
	"sort"

	"github.com/arcuru/eidetica/pkg/eideticaerr"
)

// wireValue is the tagged-union JSON form of a Value, analogous to the
// serde-tagged enum the Rust original serializes its CRDT values as.
type wireValue struct {
	Type string            `json:"type"`
	Text string            `json:"text,omitempty"`
	Map  map[string]wireValue `json:"map,omitempty"`
	List []wireListItem    `json:"list,omitempty"`
}

type wireListItem struct {
	Pos   string    `json:"pos"`
	Value wireValue `json:"value"`
}

func toWire(v Value) wireValue {
	switch v.kind {
	case KindText:
		return wireValue{Type: "text", Text: v.text}
	case KindDeleted:
		return wireValue{Type: "deleted"}
	case KindMap:
		m := make(map[string]wireValue, len(v.m))
		for k, val := range v.m {
			m[k] = toWire(val)
		}
		return wireValue{Type: "map", Map: m}
	case KindList:
		items := make([]wireListItem, len(v.list.items))
		for i, it := range v.list.items {
			items[i] = wireListItem{Pos: it.pos.String(), Value: toWire(it.value)}
		}
		return wireValue{Type: "list", List: items}
	default:
		return wireValue{Type: "deleted"}
	}
}

func fromWire(w wireValue) (Value, error) {
	switch w.Type {
	case "text":
		return NewText(w.Text), nil
	case "deleted", "":
		return Deleted(), nil
	case "map":
		out := NewMap()
		for k, wv := range w.Map {
			v, err := fromWire(wv)
			if err != nil {
				return Value{}, err
			}
			out.Set(k, v)
		}
		return out, nil
	case "list":
		l := newList()
		for _, item := range w.List {
			pos, ok := ParsePosition(item.Pos)
			if !ok {
				return Value{}, eideticaerr.New(eideticaerr.DeserializationFailed, "invalid list position %q", item.Pos)
			}
			v, err := fromWire(item.Value)
			if err != nil {
				return Value{}, err
			}
			l.items = append(l.items, listItem{pos: pos, value: v})
		}
		sort.Slice(l.items, func(i, j int) bool { return l.items[i].pos.Cmp(l.items[j].pos) < 0 })
		return Value{kind: KindList, list: l}, nil
	default:
		return Value{}, eideticaerr.New(eideticaerr.DeserializationFailed, "unknown crdt value type %q", w.Type)
	}
}

// Marshal encodes a Value to its canonical JSON text form, suitable for
// storage as a subtree payload.
func Marshal(v Value) (string, error) {
	b, err := json.Marshal(toWire(v))
	if err != nil {
		return "", eideticaerr.Wrap(eideticaerr.SerializationFailed, err, "marshal crdt value")
	}
	return string(b), nil
}

// Unmarshal decodes a Value previously produced by Marshal. An empty string
// decodes to an empty Map, matching the convention that an absent subtree
// payload folds as if it contributed nothing.
func Unmarshal(data string) (Value, error) {
	if data == "" {
		return NewMap(), nil
	}
	var w wireValue
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return Value{}, eideticaerr.Wrap(eideticaerr.DeserializationFailed, err, "unmarshal crdt value")
	}
	return fromWire(w)
}
