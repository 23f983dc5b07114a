package types

// ConfigSchema is the composed, UI-ready view of a device: every menu with
// its items joined to the parameters they reference, plus role visibility.
type ConfigSchema struct {
	DeviceID     string       `json:"device_id,omitempty"`
	Menus        []MenuView   `json:"menus"`
	RoleMappings RoleMenuSets `json:"role_mappings"`
}

type MenuView struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Items []MenuItemView `json:"items"`
}

// MenuItemView is a MenuItem with its reference resolved. Parameter is always
// emitted; null marks a navigation item or a reference that did not resolve.
type MenuItemView struct {
	Kind        MenuItemKind `json:"kind"`
	VariableID  string       `json:"variable_id,omitempty"`
	Subindex    *uint16      `json:"subindex,omitempty"`
	MenuID      string       `json:"menu_id,omitempty"`
	ButtonValue string       `json:"button_value,omitempty"`
	Description string       `json:"description,omitempty"`
	Condition   *Condition   `json:"condition,omitempty"`
	ItemAttributes
	Unit       string      `json:"unit,omitempty"`
	RecordItem *RecordItem `json:"record_item,omitempty"`
	Parameter  *Parameter  `json:"parameter"`
	Unresolved bool        `json:"unresolved,omitempty"`
}

// ComposeResult pairs the schema with the data-quality issues found while
// joining it.
type ComposeResult struct {
	Schema   ConfigSchema `json:"schema"`
	Warnings []Issue      `json:"warnings"`
}
