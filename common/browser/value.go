package browser

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Value is the JSON result of a script evaluation
type Value struct {
	res gjson.Result
}

// ParseValue wraps raw JSON returned by a session
func ParseValue(raw string) Value {
	return Value{res: gjson.Parse(raw)}
}

// ValueOf builds a Value from a Go value, used by sessions and fakes that compute results natively
func ValueOf(v interface{}) Value {
	b, err := json.Marshal(v)
	if err != nil {
		return Value{}
	}
	return ParseValue(string(b))
}

func (v Value) Exists() bool {
	return v.res.Exists()
}

func (v Value) Float() float64 {
	return v.res.Float()
}

func (v Value) Int() int64 {
	return v.res.Int()
}

func (v Value) Bool() bool {
	return v.res.Bool()
}

func (v Value) String() string {
	return v.res.String()
}

// Get reads a nested field using gjson path syntax
func (v Value) Get(path string) Value {
	return Value{res: v.res.Get(path)}
}

func (v Value) Raw() string {
	return v.res.Raw
}
