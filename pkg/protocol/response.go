package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	StatusOK  = "ok"
	StatusErr = "err"
)

// Response is an ok response carrying items, or an err response carrying a
// reason. On the wire the items sit next to "status" in one flat object.
type Response struct {
	Status string
	Reason string
	Items  map[string]any
}

// OK returns an empty ok response.
func OK() *Response {
	return &Response{Status: StatusOK, Items: map[string]any{}}
}

// Err returns an err response with the error's message as reason.
func Err(err error) *Response {
	return &Response{Status: StatusErr, Reason: err.Error()}
}

// Errf returns an err response with a formatted reason.
func Errf(format string, args ...any) *Response {
	return &Response{Status: StatusErr, Reason: fmt.Sprintf(format, args...)}
}

// With adds an item. It has no effect on err responses.
func (r *Response) With(key string, value any) *Response {
	if r.Status != StatusOK {
		return r
	}
	if r.Items == nil {
		r.Items = map[string]any{}
	}
	r.Items[key] = value
	return r
}

// IsOK reports whether the response is an ok response.
func (r *Response) IsOK() bool {
	return r.Status == StatusOK
}

// MarshalJSON implements json.Marshaler.
func (r *Response) MarshalJSON() ([]byte, error) {
	if r.Status != StatusOK {
		return json.Marshal(struct {
			Status string `json:"status"`
			Reason string `json:"reason"`
		}{StatusErr, r.Reason})
	}

	obj := make(map[string]any, len(r.Items)+1)
	for k, v := range r.Items {
		obj[k] = v
	}
	obj["status"] = StatusOK
	return json.Marshal(obj)
}

// UnmarshalJSON implements json.Unmarshaler. Numbers in items decode as
// json.Number.
func (r *Response) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return err
	}
	if obj == nil {
		return errors.New("response must be a JSON object")
	}

	status, _ := obj["status"].(string)
	switch status {
	case StatusOK:
		delete(obj, "status")
		*r = Response{Status: StatusOK, Items: obj}
	case StatusErr:
		reason, _ := obj["reason"].(string)
		*r = Response{Status: StatusErr, Reason: reason}
	default:
		return fmt.Errorf("invalid response status %q", status)
	}
	return nil
}

// Greeting is the first frame the server sends on a new connection.
type Greeting struct {
	Version string `json:"version"`
}
