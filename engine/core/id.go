package core

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID wraps a UUID. Every identifier in the flow model — workflow, flow
// version, account, flow session, task — is an ID.
type ID uuid.UUID

// Nil is the zero-value ID.
var Nil = ID(uuid.Nil)

func NewID() (ID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Nil, fmt.Errorf("failed to generate new ID: %w", err)
	}
	return ID(id), nil
}

func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

func ParseID(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("empty ID")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("invalid ID format: %w", err)
	}
	return ID(id), nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

func (id ID) IsZero() bool {
	return id == Nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*id = Nil
		return nil
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements driver.Valuer so an ID can be written directly by pgx.
func (id ID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return id.String(), nil
}

// Scan implements sql.Scanner so an ID can be read directly by pgx/scany.
func (id *ID) Scan(src any) error {
	if src == nil {
		*id = Nil
		return nil
	}
	switch v := src.(type) {
	case string:
		parsed, err := ParseID(v)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	case [16]byte:
		*id = ID(uuid.UUID(v))
		return nil
	default:
		return fmt.Errorf("unsupported scan type for core.ID: %T", src)
	}
}
