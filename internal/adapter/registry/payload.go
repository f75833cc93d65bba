package registry

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// maxErrorBody caps the body kept on a RequestFailedError.
const maxErrorBody = 2048

// flexString decodes a JSON string or number into text. The registry is not
// consistent about quoting codes such as outCodEscola.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) Int() int {
	n, _ := strconv.Atoi(strings.TrimLeft(string(f), "0"))
	return n
}

// errorMessage extracts the text of an outErro field; empty means no error.
func errorMessage(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

// businessError reports the outErro message embedded in a successful response, if any.
func businessError(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ""
	}
	var envelope struct {
		Erro json.RawMessage `json:"outErro"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return ""
	}
	return errorMessage(envelope.Erro)
}

// rawText renders a JSON scalar as plain text.
func rawText(raw json.RawMessage) string {
	var f flexString
	if err := f.UnmarshalJSON(raw); err == nil {
		return string(f)
	}
	return string(bytes.TrimSpace(raw))
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}
