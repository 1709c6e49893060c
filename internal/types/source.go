package types

type Source struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
}

func (s *Source) Label() string {
	if s == nil {
		return ""
	}
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}
