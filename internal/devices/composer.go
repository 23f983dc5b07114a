package devices

import (
	"fmt"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/catalog"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Composer joins a device's menus with its parameters into the config
// schema. It holds no per-device state and may be shared.
type Composer struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

func NewComposer(cat *catalog.Catalog, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{catalog: cat, logger: logger}
}

// Compose never fails on unresolved references: they are emitted with a nil
// parameter and reported as warnings.
func (c *Composer) Compose(d *types.Device) types.ComposeResult {
	params := d.ParameterIndex()
	menus := d.MenuIndex()
	report := &types.Report{}

	schema := types.ConfigSchema{
		Menus: make([]types.MenuView, 0, len(d.Menus)),
	}
	if d.ID != uuid.Nil {
		schema.DeviceID = d.ID.String()
	}

	for i := range d.Menus {
		m := &d.Menus[i]
		view := types.MenuView{
			ID:    m.ID,
			Name:  m.Name,
			Items: make([]types.MenuItemView, 0, len(m.Items)),
		}
		for j, it := range m.Items {
			path := fmt.Sprintf("/menus/%s/items/%d", m.ID, j)
			view.Items = append(view.Items, c.item(it, path, params, menus, report))
		}
		schema.Menus = append(schema.Menus, view)
	}

	schema.RoleMappings = roleMappings(d, menus)
	report.Finalize()

	c.logger.Debug("Composed config schema",
		zap.String("device", d.Identity.DeviceName),
		zap.Int("menus", len(schema.Menus)),
		zap.Int("warnings", len(report.Warnings)))

	return types.ComposeResult{Schema: schema, Warnings: report.Warnings}
}

// ComposeJSON returns the encoded schema. Equal devices encode to equal
// bytes: every list follows document order and maps are key-sorted.
func (c *Composer) ComposeJSON(d *types.Device) ([]byte, []types.Issue, error) {
	res := c.Compose(d)
	data, err := json.Marshal(res.Schema)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal config schema: %w", err)
	}
	return data, res.Warnings, nil
}

func (c *Composer) item(it types.MenuItem, path string, params map[string]*types.Parameter, menus map[string]*types.Menu, report *types.Report) types.MenuItemView {
	attrs := it.Attributes()
	view := types.MenuItemView{Kind: it.Kind(), ItemAttributes: attrs}

	switch v := it.(type) {
	case types.VariableRef:
		view.VariableID = v.VariableID
		c.attach(&view, v.VariableID, path, params, report)

	case types.RecordItemRef:
		sub := v.Subindex
		view.VariableID = v.VariableID
		view.Subindex = &sub
		if p := c.attach(&view, v.VariableID, path, params, report); p != nil {
			if ri, ok := recordItem(p, sub); ok {
				view.RecordItem = &ri
				if ri.Unit != "" && attrs.UnitCode == "" {
					view.Unit = ri.Unit
				}
			} else {
				view.Unresolved = true
				report.AddWarning(types.Issue{
					Code:    types.CodeDanglingVariableRef,
					Message: fmt.Sprintf("Variable %s has no record item with subindex %d", v.VariableID, sub),
					Path:    path,
					Ref:     v.VariableID,
					Meta:    map[string]any{"subindex": sub},
				})
			}
		}

	case types.MenuRef:
		view.MenuID = v.MenuID
		view.Condition = v.Condition
		if _, ok := menus[v.MenuID]; !ok {
			view.Unresolved = true
			report.AddWarning(types.Issue{
				Code:    types.CodeDanglingMenuRef,
				Message: "Menu reference points to unknown menu " + v.MenuID,
				Path:    path,
				Ref:     v.MenuID,
			})
		}

	case types.Button:
		view.VariableID = v.VariableID
		view.ButtonValue = v.Value
		view.Description = v.Description
		c.attach(&view, v.VariableID, path, params, report)
	}

	if attrs.UnitCode != "" && c.catalog != nil {
		view.Unit = c.catalog.UnitSymbol(attrs.UnitCode)
	}
	return view
}

// attach sets a copy of the referenced parameter on view, or marks it
// unresolved.
func (c *Composer) attach(view *types.MenuItemView, id, path string, params map[string]*types.Parameter, report *types.Report) *types.Parameter {
	p, ok := params[id]
	if !ok {
		view.Unresolved = true
		report.AddWarning(types.Issue{
			Code:    types.CodeDanglingVariableRef,
			Message: "Menu item references unknown variable " + id,
			Path:    path,
			Ref:     id,
		})
		return nil
	}
	cp := *p
	view.Parameter = &cp
	if view.Unit == "" {
		view.Unit = p.Unit
	}
	return p
}

func recordItem(p *types.Parameter, sub uint16) (types.RecordItem, bool) {
	for _, ri := range p.RecordItems {
		if ri.Subindex == sub {
			return ri, true
		}
	}
	return types.RecordItem{}, false
}
