package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringList is stored as a jsonb array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

// GormDataType keeps AutoMigrate on jsonb instead of text.
func (StringList) GormDataType() string {
	return "jsonb"
}

// StringMap is stored as a jsonb object. It replaces the hstore columns of the
// older clearinghouse schema.
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *StringMap) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*m = StringMap{}
		return nil
	}
	return json.Unmarshal(raw, (*map[string]string)(m))
}

func (StringMap) GormDataType() string {
	return "jsonb"
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported jsonb source %T", src)
	}
}

// Address is embedded into providers and trip tickets with a column prefix.
type Address struct {
	Line1 string `json:"address_1" gorm:"column:address_1"`
	Line2 string `json:"address_2" gorm:"column:address_2"`
	City  string `json:"city" gorm:"column:city"`
	State string `json:"state" gorm:"column:state"`
	Zip   string `json:"zip" gorm:"column:zip"`
}

// IsBlank reports whether no address field is set.
func (a Address) IsBlank() bool {
	return strings.TrimSpace(a.Line1+a.Line2+a.City+a.State+a.Zip) == ""
}
