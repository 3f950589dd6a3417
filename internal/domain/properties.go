package domain

import "encoding/json"

// legacyProperties is the flat, free-form bag older documents stored per
// element. It is translated into the typed Properties union at the load
// boundary and never survives past unmarshaling.
type legacyProperties struct {
	FillColor   string `json:"fill_color"`
	BorderColor string `json:"border_color"`
	BorderWidth int    `json:"border_width"`
	Src         string `json:"src"`
	MediaURL    string `json:"media_url"`
	Autoplay    bool   `json:"autoplay"`
	Loop        bool   `json:"loop"`
	Content     string `json:"content"`
	Text        string `json:"text"`
	Font        string `json:"font"`
	FontSize    int    `json:"font_size"`
	Color       string `json:"color"`
}

// UnmarshalJSON decodes an element record, accepting both the current union
// form of properties and the flat legacy bag.
func (e *ElementRecord) UnmarshalJSON(data []byte) error {
	type alias ElementRecord
	aux := struct {
		*alias
		Properties json.RawMessage `json:"properties"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Properties) == 0 || string(aux.Properties) == "null" {
		return nil
	}

	var union Properties
	if err := json.Unmarshal(aux.Properties, &union); err == nil &&
		(union.Shape != nil || union.Media != nil || union.Text != nil) {
		e.Properties = union
		return nil
	}

	var legacy legacyProperties
	if err := json.Unmarshal(aux.Properties, &legacy); err != nil {
		return err
	}
	e.Properties = legacy.toUnion(e.Type)
	return nil
}

func (l legacyProperties) toUnion(t ElementType) Properties {
	switch t {
	case ElementImage, ElementVideo, ElementAudio:
		src := l.MediaURL
		if src == "" {
			src = l.Src
		}
		return Properties{Media: &MediaProperties{Source: src, Autoplay: l.Autoplay, Loop: l.Loop}}
	case ElementRichText:
		content := l.Content
		if content == "" {
			content = l.Text
		}
		return Properties{Text: &TextProperties{Content: content, Font: l.Font, FontSize: l.FontSize, Color: l.Color}}
	default:
		return Properties{Shape: &ShapeProperties{FillColor: l.FillColor, BorderColor: l.BorderColor, BorderWidth: l.BorderWidth}}
	}
}
