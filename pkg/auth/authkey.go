package auth

import (
	"strconv"

	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/eideticaerr"
)

// PermissionLevel orders the three permission tiers a key can hold.
type PermissionLevel int

const (
	PermissionRead PermissionLevel = iota
	PermissionWrite
	PermissionAdmin
)

func (l PermissionLevel) String() string {
	switch l {
	case PermissionRead:
		return "read"
	case PermissionWrite:
		return "write"
	case PermissionAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Permission is a level plus the priority that breaks ties between keys at
// the same level (priority semantics beyond ordering are left to callers;
// the core validator only checks level).
type Permission struct {
	Level    PermissionLevel
	Priority uint32
}

// Status is a key's lifecycle state within a tree's settings.
type Status int

const (
	StatusActive Status = iota
	StatusRevoked
)

func (s Status) String() string {
	if s == StatusRevoked {
		return "revoked"
	}
	return "active"
}

// AuthKey is one entry in `_settings.auth`: a published public key plus the
// permission and status that gate what it may commit.
type AuthKey struct {
	PublicKey  string
	Permission Permission
	Status     Status
}

// ToValue encodes the key as the CRDT Map `_settings.auth` stores it as.
func (k AuthKey) ToValue() crdt.Value {
	v := crdt.NewMap()
	v.Set("public_key", crdt.NewText(k.PublicKey))
	v.Set("level", crdt.NewText(k.Permission.Level.String()))
	v.Set("priority", crdt.NewText(strconv.FormatUint(uint64(k.Permission.Priority), 10)))
	v.Set("status", crdt.NewText(k.Status.String()))
	return v
}

// AuthKeyFromValue decodes an AuthKey previously produced by ToValue.
func AuthKeyFromValue(v crdt.Value) (AuthKey, error) {
	if !v.IsMap() {
		return AuthKey{}, eideticaerr.New(eideticaerr.InvalidData, "auth key entry is not a map")
	}
	pub, _ := getText(v, "public_key")
	levelStr, _ := getText(v, "level")
	priorityStr, _ := getText(v, "priority")
	statusStr, _ := getText(v, "status")

	level, err := parseLevel(levelStr)
	if err != nil {
		return AuthKey{}, err
	}
	priority, _ := strconv.ParseUint(priorityStr, 10, 32)
	status := StatusActive
	if statusStr == "revoked" {
		status = StatusRevoked
	}
	return AuthKey{
		PublicKey:  pub,
		Permission: Permission{Level: level, Priority: uint32(priority)},
		Status:     status,
	}, nil
}

func getText(v crdt.Value, key string) (string, bool) {
	field, ok := v.Get(key)
	if !ok {
		return "", false
	}
	return field.AsText()
}

func parseLevel(s string) (PermissionLevel, error) {
	switch s {
	case "read":
		return PermissionRead, nil
	case "write":
		return PermissionWrite, nil
	case "admin":
		return PermissionAdmin, nil
	default:
		return 0, eideticaerr.New(eideticaerr.InvalidData, "unknown permission level %q", s)
	}
}
