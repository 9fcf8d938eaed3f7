package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Text is a string field that clients sometimes write as a number or a
// boolean. Any scalar decodes to its string form; null decodes to "".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		*t = Text(val)
	case float64:
		*t = Text(strconv.FormatFloat(val, 'f', -1, 64))
	case bool:
		*t = Text(strconv.FormatBool(val))
	default:
		return fmt.Errorf("text: unsupported value %s", data)
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Decode converts a tree value into out through its JSON form.
func Decode(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
