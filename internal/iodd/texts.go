package iodd

import "github.com/KevinKickass/OpenDeviceCatalog/internal/types"

// textTable resolves textId references against the primary language.
type textTable struct {
	primary map[string]string
	missing map[string]bool
	report  *types.Report
}

func newTextTable(ext xmlExternalTexts, report *types.Report) *textTable {
	t := &textTable{
		primary: make(map[string]string, len(ext.Primary.Texts)),
		missing: map[string]bool{},
		report:  report,
	}
	for _, txt := range ext.Primary.Texts {
		if _, dup := t.primary[txt.ID]; !dup {
			t.primary[txt.ID] = txt.Value
		}
	}
	return t
}

// lookup returns the text for ref. A reference to an undeclared text
// resolves to the raw id and is reported once.
func (t *textTable) lookup(ref xmlTextRef, path string) string {
	if ref.TextID == "" {
		return ""
	}
	if v, ok := t.primary[ref.TextID]; ok {
		return v
	}
	if !t.missing[ref.TextID] {
		t.missing[ref.TextID] = true
		t.report.AddWarning(types.Issue{
			Code:    types.CodeMissingText,
			Message: "Text id not found in primary language: " + ref.TextID,
			Path:    path,
			Ref:     ref.TextID,
		})
	}
	return ref.TextID
}

// languages lists the language codes the document carries, primary first.
func languages(ext xmlExternalTexts) []string {
	out := make([]string, 0, len(ext.Languages)+1)
	if ext.Primary.Lang != "" {
		out = append(out, ext.Primary.Lang)
	}
	for _, l := range ext.Languages {
		if l.Lang != "" {
			out = append(out, l.Lang)
		}
	}
	return out
}
