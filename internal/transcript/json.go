package transcript

import "encoding/json"

type wireMessage struct {
	Role    Role          `json:"role"`
	Content []ContentItem `json:"content"`
}

func marshalMessage(m Message) ([]byte, error) {
	return json.Marshal(wireMessage{Role: m.role, Content: m.content})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = NewMessage(w.Role, w.Content...)
	return nil
}
