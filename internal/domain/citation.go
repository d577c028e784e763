package domain

import "encoding/json"

// Citation is a UI-facing reference to a source passage used for an answer.
type Citation struct {
	DocumentID   string `json:"documentId"`
	DocumentName string `json:"documentName"`
	Location     string `json:"location,omitempty"`
	Snippet      string `json:"snippet,omitempty"`
}

// Label is the short caption shown under an answer, e.g. "Policy-A.pdf (page 3)".
func (c Citation) Label() string {
	name := c.DocumentName
	if name == "" {
		name = c.DocumentID
	}
	if c.Location == "" {
		return name
	}
	return name + " (" + c.Location + ")"
}

// MarshalJSON adds the caption as "label" so clients render it as is.
func (c Citation) MarshalJSON() ([]byte, error) {
	type plain Citation
	return json.Marshal(struct {
		plain
		Label string `json:"label"`
	}{plain: plain(c), Label: c.Label()})
}
