package devices

import (
	"strings"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
)

// entitlement is the lowest role that sees a category; every higher role
// sees it too.
var entitlement = map[types.MenuCategory]types.Role{
	types.CategoryIdentification: types.RoleObserver,
	types.CategoryObservation:    types.RoleObserver,
	types.CategoryParameter:      types.RoleMaintenance,
	types.CategoryDiagnosis:      types.RoleSpecialist,
}

var categoryKeywords = map[types.MenuCategory][]string{
	types.CategoryIdentification: {"ident"},
	types.CategoryParameter:      {"param", "setup", "config", "setting"},
	types.CategoryObservation:    {"observ", "monitor", "process", "status"},
	types.CategoryDiagnosis:      {"diag"},
}

func roleRank(r types.Role) int {
	for i, role := range types.Roles {
		if role == r {
			return i
		}
	}
	return len(types.Roles)
}

// roleMappings assigns one menu per category and hands it to every role at
// or above the category's entitlement, so observer ⊆ maintenance ⊆
// specialist always holds. Declared role menu sets are consulted from the
// lowest entitled role upwards; without any, categories are matched against
// top-level menu ids and names.
func roleMappings(d *types.Device, menus map[string]*types.Menu) types.RoleMenuSets {
	canonical := map[types.MenuCategory]string{}
	if !d.RoleMenuSets.IsZero() {
		for _, cat := range types.Categories {
			for _, role := range types.Roles[roleRank(entitlement[cat]):] {
				if id := d.RoleMenuSets.ForRole(role)[cat]; id != "" {
					if _, ok := menus[id]; ok {
						canonical[cat] = id
						break
					}
				}
			}
		}
	} else {
		canonical = deriveCategories(d)
	}

	out := types.RoleMenuSets{
		Observer:    types.RoleMenuSet{},
		Maintenance: types.RoleMenuSet{},
		Specialist:  types.RoleMenuSet{},
	}
	for _, cat := range types.Categories {
		id, ok := canonical[cat]
		if !ok {
			continue
		}
		for _, role := range types.Roles[roleRank(entitlement[cat]):] {
			out.ForRole(role)[cat] = id
		}
	}
	return out
}

// topLevelMenus returns menus no other menu links to, in document order.
func topLevelMenus(d *types.Device) []*types.Menu {
	referenced := map[string]bool{}
	for _, m := range d.Menus {
		for _, it := range m.Items {
			if ref, ok := it.(types.MenuRef); ok && ref.MenuID != m.ID {
				referenced[ref.MenuID] = true
			}
		}
	}
	out := make([]*types.Menu, 0, len(d.Menus))
	for i := range d.Menus {
		if !referenced[d.Menus[i].ID] {
			out = append(out, &d.Menus[i])
		}
	}
	return out
}

func deriveCategories(d *types.Device) map[types.MenuCategory]string {
	out := map[types.MenuCategory]string{}
	used := map[string]bool{}
	top := topLevelMenus(d)
	for _, cat := range types.Categories {
		for _, m := range top {
			if used[m.ID] {
				continue
			}
			if matchesCategory(m, cat) {
				out[cat] = m.ID
				used[m.ID] = true
				break
			}
		}
	}
	return out
}

func matchesCategory(m *types.Menu, cat types.MenuCategory) bool {
	hay := strings.ToLower(m.ID + " " + m.Name)
	for _, kw := range categoryKeywords[cat] {
		if strings.Contains(hay, kw) {
			return true
		}
	}
	return false
}
