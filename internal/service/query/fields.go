package query

import (
	"strings"

	"dynquery/internal/catalog"
)

// FieldInfo describes one field offered to query builders.
type FieldInfo struct {
	Name    string           `json:"name"`
	Type    string           `json:"type"`
	Options []catalog.Option `json:"options,omitempty"`
}

// GetFields lists the fields of model that query builders may use. Hidden
// fields are left out, as are foreign keys not marked embeddable.
func (s *Service) GetFields(model string) ([]FieldInfo, error) {
	cat := s.catalog.Current()
	m, err := cat.Model(model)
	if err != nil {
		return nil, err
	}
	fields := make([]FieldInfo, 0, len(m.Fields))
	for _, f := range m.Fields {
		if cat.Hidden(f.Name) {
			continue
		}
		if strings.HasSuffix(f.Name, "_id") && !cat.Embeddable(f.Name) {
			continue
		}
		fields = append(fields, FieldInfo{Name: f.Name, Type: f.Type, Options: f.Options})
	}
	return fields, nil
}
