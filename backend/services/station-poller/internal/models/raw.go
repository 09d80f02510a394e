package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Text is a JSON scalar kept in its textual form. Strings are unquoted, numbers and booleans keep
// their literal spelling, null and absent values are "". Objects and arrays are rejected.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = ""
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{', '[':
		return fmt.Errorf("models: expected scalar, got %.20s", trimmed)
	default:
		*t = Text(trimmed)
	}
	return nil
}

// String returns the text.
func (t Text) String() string { return string(t) }

// RawConnector is one upstream connector record. Upstream spells a few fields in more than one
// way; the accessors pick the first populated variant.
type RawConnector struct {
	ID               Text `json:"id"`
	Type             Text `json:"type"`
	Status           Text `json:"status"`
	Power            Text `json:"power"`
	Effect           Text `json:"effect"`
	Tariff           Text `json:"tariff"`
	TariffDefinition Text `json:"tariffDefinition"`
}

// PowerValue returns power, falling back to effect.
func (c RawConnector) PowerValue() string {
	if c.Power != "" {
		return string(c.Power)
	}
	return string(c.Effect)
}

// TariffValue returns tariff, falling back to tariffDefinition.
func (c RawConnector) TariffValue() string {
	if c.Tariff != "" {
		return string(c.Tariff)
	}
	return string(c.TariffDefinition)
}

// ConnectorGroup is one entry of an upstream type -> connectors grouping.
type ConnectorGroup struct {
	Type       string
	Connectors []RawConnector
}

// ConnectorGroups keeps the grouping in upstream key order so flattening is deterministic.
type ConnectorGroups []ConnectorGroup

// UnmarshalJSON decodes a JSON object of type -> list<connector> preserving key order.
func (g *ConnectorGroups) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*g = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("models: connector grouping must be an object")
	}

	groups := make(ConnectorGroups, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var connectors []RawConnector
		if err := dec.Decode(&connectors); err != nil {
			return fmt.Errorf("models: connector group %q: %w", key, err)
		}
		groups = append(groups, ConnectorGroup{Type: key, Connectors: connectors})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*g = groups
	return nil
}

// MarshalJSON writes the grouping back as an object in the same key order.
func (g ConnectorGroups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, group := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(group.Type)
		if err != nil {
			return nil, err
		}
		list, err := json.Marshal(group.Connectors)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(list)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Flatten returns every connector of every group with Type set to its grouping key.
func (g ConnectorGroups) Flatten() []RawConnector {
	var out []RawConnector
	for _, group := range g {
		for _, c := range group.Connectors {
			c.Type = Text(group.Type)
			out = append(out, c)
		}
	}
	return out
}

// Location is the upstream coordinate pair.
type Location struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// RawStation is one upstream station record.
type RawStation struct {
	ID               Text             `json:"id"`
	Name             Text             `json:"name"`
	Operator         Text             `json:"operator"`
	Address          Text             `json:"address"`
	Description      Text             `json:"description"`
	Location         *Location        `json:"location"`
	Amenities        []Text           `json:"amenities"`
	TotalConnectors  json.RawMessage  `json:"totalConnectors,omitempty"`
	Connectors       []RawConnector   `json:"connectors,omitempty"`
	ConnectionTypes  *ConnectorGroups `json:"connectionTypes,omitempty"`
	ConnectionsTypes *ConnectorGroups `json:"connectionsTypes,omitempty"`
	Status           Text             `json:"status"`
}

// DeclaredTotal returns totalConnectors when upstream sent a non-zero number. Values beyond the
// int32 range are clamped.
func (s RawStation) DeclaredTotal() (int, bool) {
	if len(s.TotalConnectors) == 0 {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(s.TotalConnectors, &v); err != nil {
		return 0, false
	}
	switch {
	case v == 0:
		return 0, false
	case v > math.MaxInt32:
		return math.MaxInt32, true
	case v < math.MinInt32:
		return math.MinInt32, true
	}
	return int(v), true
}

// AmenityList joins amenities with ", ".
func (s RawStation) AmenityList() string {
	parts := make([]string, 0, len(s.Amenities))
	for _, a := range s.Amenities {
		parts = append(parts, string(a))
	}
	return strings.Join(parts, ", ")
}

// ResolveConnectors is the single place that decides which upstream field holds a station's
// connectors: a non-empty connectors list, else connectionTypes, else connectionsTypes.
func ResolveConnectors(s RawStation) []RawConnector {
	switch {
	case len(s.Connectors) > 0:
		return s.Connectors
	case s.ConnectionTypes != nil:
		return s.ConnectionTypes.Flatten()
	case s.ConnectionsTypes != nil:
		return s.ConnectionsTypes.Flatten()
	default:
		return nil
	}
}
