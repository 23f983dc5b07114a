package iodd

import (
	"fmt"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
)

type menuBuilder struct {
	texts  *textTable
	report *types.Report
}

// build returns the menus as flat siblings in document order. MenuRef items
// are kept even when their target does not exist.
func (b *menuBuilder) build(ui xmlUserInterface) []types.Menu {
	menus := make([]types.Menu, 0, len(ui.Menus))
	for i := range ui.Menus {
		xm := &ui.Menus[i]
		path := "/menus/" + xm.ID

		m := types.Menu{
			ID:    xm.ID,
			Name:  b.texts.lookup(xm.Name, path),
			Items: make([]types.MenuItem, 0, len(xm.Entries)),
		}
		for j := range xm.Entries {
			m.Items = append(m.Items, b.items(&xm.Entries[j], fmt.Sprintf("%s/items/%d", path, j))...)
		}
		menus = append(menus, m)
	}

	b.checkMenuRefs(menus)
	return menus
}

func (b *menuBuilder) items(e *xmlMenuEntry, path string) []types.MenuItem {
	attrs := types.ItemAttributes{
		AccessRightRestriction: types.ParseAccessRights(e.AccessRightRestriction),
		DisplayFormat:          types.ParseDisplayFormat(e.DisplayFormat),
		UnitCode:               e.UnitCode,
	}

	switch e.XMLName.Local {
	case "VariableRef":
		if len(e.Buttons) == 0 {
			return []types.MenuItem{types.VariableRef{VariableID: e.VariableID, ItemAttributes: attrs}}
		}
		out := make([]types.MenuItem, 0, len(e.Buttons))
		for _, btn := range e.Buttons {
			out = append(out, types.Button{
				VariableID:     e.VariableID,
				Value:          btn.ButtonValue,
				Description:    b.texts.lookup(btn.Description, path),
				ItemAttributes: attrs,
			})
		}
		return out

	case "RecordItemRef":
		sub, ok := parseUint32(e.Subindex)
		if !ok || sub > 0xFFFF {
			b.report.AddWarning(types.Issue{
				Code:    types.CodeDanglingVariableRef,
				Message: fmt.Sprintf("Record item reference to %q has invalid subindex %q", e.VariableID, e.Subindex),
				Path:    path,
				Ref:     e.VariableID,
			})
			return nil
		}
		return []types.MenuItem{types.RecordItemRef{VariableID: e.VariableID, Subindex: uint16(sub), ItemAttributes: attrs}}

	case "MenuRef":
		return []types.MenuItem{types.MenuRef{MenuID: e.MenuID, Condition: convertCondition(e.Condition), ItemAttributes: attrs}}
	}
	return nil
}

func (b *menuBuilder) checkMenuRefs(menus []types.Menu) {
	known := make(map[string]bool, len(menus))
	for _, m := range menus {
		known[m.ID] = true
	}
	for _, m := range menus {
		for i, it := range m.Items {
			ref, ok := it.(types.MenuRef)
			if !ok || known[ref.MenuID] {
				continue
			}
			b.report.AddWarning(types.Issue{
				Code:    types.CodeDanglingMenuRef,
				Message: fmt.Sprintf("Menu %q references unknown menu %q", m.ID, ref.MenuID),
				Path:    fmt.Sprintf("/menus/%s/items/%d", m.ID, i),
				Ref:     ref.MenuID,
			})
		}
	}
}

// roleMenuSets converts the declared role menu sets. Entries naming a menu
// that does not exist are reported and left out.
func (b *menuBuilder) roleMenuSets(ui xmlUserInterface, menus []types.Menu) types.RoleMenuSets {
	known := make(map[string]bool, len(menus))
	for _, m := range menus {
		known[m.ID] = true
	}

	convert := func(role types.Role, set *xmlRoleMenuSet) types.RoleMenuSet {
		if set == nil {
			return nil
		}
		out := types.RoleMenuSet{}
		pointers := []struct {
			cat types.MenuCategory
			ptr *xmlMenuPointer
		}{
			{types.CategoryIdentification, set.Identification},
			{types.CategoryParameter, set.Parameter},
			{types.CategoryObservation, set.Observation},
			{types.CategoryDiagnosis, set.Diagnosis},
		}
		for _, p := range pointers {
			if p.ptr == nil || p.ptr.MenuID == "" {
				continue
			}
			if !known[p.ptr.MenuID] {
				b.report.AddWarning(types.Issue{
					Code:    types.CodeUnknownRoleMenu,
					Message: fmt.Sprintf("%s role menu set names unknown %s menu %q", role, p.cat, p.ptr.MenuID),
					Path:    "/role_menu_sets/" + string(role),
					Ref:     p.ptr.MenuID,
				})
				continue
			}
			out[p.cat] = p.ptr.MenuID
		}
		return out
	}

	return types.RoleMenuSets{
		Observer:    convert(types.RoleObserver, ui.Observer),
		Maintenance: convert(types.RoleMaintenance, ui.Maintenance),
		Specialist:  convert(types.RoleSpecialist, ui.Specialist),
	}
}
