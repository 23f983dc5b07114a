package types

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

type MenuItemKind string

const (
	ItemVariableRef   MenuItemKind = "variable_ref"
	ItemRecordItemRef MenuItemKind = "record_item_ref"
	ItemMenuRef       MenuItemKind = "menu_ref"
	ItemButton        MenuItemKind = "button"
)

type DisplayFormat string

const (
	DisplayDecimal DisplayFormat = "decimal"
	DisplayHex     DisplayFormat = "hex"
	DisplayBinary  DisplayFormat = "binary"
)

// ParseDisplayFormat maps "Dec", "Dec.2", "Hex", "Bin" and the normalized
// names. Anything else yields "".
func ParseDisplayFormat(s string) DisplayFormat {
	switch {
	case s == "":
		return ""
	case s == "Hex", s == "hex":
		return DisplayHex
	case s == "Bin", s == "bin", s == "binary":
		return DisplayBinary
	case s == "decimal", len(s) >= 3 && (s[:3] == "Dec" || s[:3] == "dec"):
		return DisplayDecimal
	}
	return ""
}

// ItemAttributes are the presentation hints any menu item may carry.
type ItemAttributes struct {
	AccessRightRestriction AccessRights  `json:"access_right_restriction,omitempty"`
	DisplayFormat          DisplayFormat `json:"display_format,omitempty"`
	UnitCode               string        `json:"unit_code,omitempty"`
}

// MenuItem is a closed set: VariableRef, RecordItemRef, MenuRef, Button.
type MenuItem interface {
	Kind() MenuItemKind
	Attributes() ItemAttributes
	menuItem()
}

type VariableRef struct {
	VariableID string
	ItemAttributes
}

type RecordItemRef struct {
	VariableID string
	Subindex   uint16
	ItemAttributes
}

// MenuRef is a navigation edge. Condition, when set, makes the submenu
// visible only while the referenced variable holds the value.
type MenuRef struct {
	MenuID    string
	Condition *Condition
	ItemAttributes
}

// Button is an action: writing Value to the referenced variable.
type Button struct {
	VariableID  string
	Value       string
	Description string
	ItemAttributes
}

func (VariableRef) Kind() MenuItemKind   { return ItemVariableRef }
func (RecordItemRef) Kind() MenuItemKind { return ItemRecordItemRef }
func (MenuRef) Kind() MenuItemKind       { return ItemMenuRef }
func (Button) Kind() MenuItemKind        { return ItemButton }

func (v VariableRef) Attributes() ItemAttributes   { return v.ItemAttributes }
func (r RecordItemRef) Attributes() ItemAttributes { return r.ItemAttributes }
func (m MenuRef) Attributes() ItemAttributes       { return m.ItemAttributes }
func (b Button) Attributes() ItemAttributes        { return b.ItemAttributes }

func (VariableRef) menuItem()   {}
func (RecordItemRef) menuItem() {}
func (MenuRef) menuItem()       {}
func (Button) menuItem()        {}

// Menu is a flat node; submenus are reached through MenuRef items.
type Menu struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

// menuItemEnvelope is the wire shape of every MenuItem variant.
type menuItemEnvelope struct {
	Kind        MenuItemKind `json:"kind"`
	VariableID  string       `json:"variable_id,omitempty"`
	Subindex    *uint16      `json:"subindex,omitempty"`
	MenuID      string       `json:"menu_id,omitempty"`
	ButtonValue string       `json:"button_value,omitempty"`
	Description string       `json:"description,omitempty"`
	Condition   *Condition   `json:"condition,omitempty"`
	ItemAttributes
}

func envelopeOf(item MenuItem) (menuItemEnvelope, error) {
	env := menuItemEnvelope{Kind: item.Kind(), ItemAttributes: item.Attributes()}
	switch it := item.(type) {
	case VariableRef:
		env.VariableID = it.VariableID
	case RecordItemRef:
		sub := it.Subindex
		env.VariableID = it.VariableID
		env.Subindex = &sub
	case MenuRef:
		env.MenuID = it.MenuID
		env.Condition = it.Condition
	case Button:
		env.VariableID = it.VariableID
		env.ButtonValue = it.Value
		env.Description = it.Description
	default:
		return env, fmt.Errorf("unknown menu item type %T", item)
	}
	return env, nil
}

func (env menuItemEnvelope) item() (MenuItem, error) {
	switch env.Kind {
	case ItemVariableRef:
		return VariableRef{VariableID: env.VariableID, ItemAttributes: env.ItemAttributes}, nil
	case ItemRecordItemRef:
		if env.Subindex == nil {
			return nil, fmt.Errorf("record_item_ref %q without subindex", env.VariableID)
		}
		return RecordItemRef{VariableID: env.VariableID, Subindex: *env.Subindex, ItemAttributes: env.ItemAttributes}, nil
	case ItemMenuRef:
		return MenuRef{MenuID: env.MenuID, Condition: env.Condition, ItemAttributes: env.ItemAttributes}, nil
	case ItemButton:
		return Button{VariableID: env.VariableID, Value: env.ButtonValue, Description: env.Description, ItemAttributes: env.ItemAttributes}, nil
	}
	return nil, fmt.Errorf("unknown menu item kind %q", env.Kind)
}

func (m Menu) MarshalJSON() ([]byte, error) {
	items := make([]menuItemEnvelope, 0, len(m.Items))
	for _, it := range m.Items {
		env, err := envelopeOf(it)
		if err != nil {
			return nil, err
		}
		items = append(items, env)
	}
	return json.Marshal(struct {
		ID    string             `json:"id"`
		Name  string             `json:"name"`
		Items []menuItemEnvelope `json:"items"`
	}{m.ID, m.Name, items})
}

func (m *Menu) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    string             `json:"id"`
		Name  string             `json:"name"`
		Items []menuItemEnvelope `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.ID, m.Name = raw.ID, raw.Name
	m.Items = make([]MenuItem, 0, len(raw.Items))
	for i, env := range raw.Items {
		it, err := env.item()
		if err != nil {
			return fmt.Errorf("menu %s item %d: %w", raw.ID, i, err)
		}
		m.Items = append(m.Items, it)
	}
	return nil
}

type Role string

const (
	RoleObserver    Role = "observer"
	RoleMaintenance Role = "maintenance"
	RoleSpecialist  Role = "specialist"
)

// Roles in ascending privilege.
var Roles = []Role{RoleObserver, RoleMaintenance, RoleSpecialist}

type MenuCategory string

const (
	CategoryIdentification MenuCategory = "identification"
	CategoryParameter      MenuCategory = "parameter"
	CategoryObservation    MenuCategory = "observation"
	CategoryDiagnosis      MenuCategory = "diagnosis"
)

// Categories in the order role menu sets declare them.
var Categories = []MenuCategory{CategoryIdentification, CategoryParameter, CategoryObservation, CategoryDiagnosis}

// RoleMenuSet maps a menu category to the top-level menu shown for it.
type RoleMenuSet map[MenuCategory]string

// MenuIDs returns the distinct menu ids of the set, sorted.
func (s RoleMenuSet) MenuIDs() []string {
	seen := make(map[string]struct{}, len(s))
	out := make([]string, 0, len(s))
	for _, id := range s {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type RoleMenuSets struct {
	Observer    RoleMenuSet `json:"observer"`
	Maintenance RoleMenuSet `json:"maintenance"`
	Specialist  RoleMenuSet `json:"specialist"`
}

func (r RoleMenuSets) ForRole(role Role) RoleMenuSet {
	switch role {
	case RoleObserver:
		return r.Observer
	case RoleMaintenance:
		return r.Maintenance
	case RoleSpecialist:
		return r.Specialist
	}
	return nil
}

func (r RoleMenuSets) IsZero() bool {
	return len(r.Observer) == 0 && len(r.Maintenance) == 0 && len(r.Specialist) == 0
}
