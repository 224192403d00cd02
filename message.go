package datalayer

import (
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
)

// Message is a single dataLayer entry as returned by the page.
//
// Entries that are not JSON objects (GTM also accepts command arrays) are
// returned as nil Messages, keeping their position. Read the raw entries
// with Page.Evaluate when their content is needed.
type Message map[string]interface{}

// Event returns the message's event name, or "" when the message is not an
// event.
func (m Message) Event() string {
	s, _ := m["event"].(string)
	return s
}

// DataModel is a container's flattened data model: every variable name with
// its current value.
type DataModel map[string]interface{}

// result is the envelope the in-page functions in js/ return.
type result struct {
	// Missing names the object the function could not find, see the Kind
	// constants.
	Missing string

	Found bool
	Value []byte

	IDs []string

	Messages       []Message
	SerializeError string
}

func decodeResult(buf []byte) (*result, error) {
	res := new(result)
	if buf == nil {
		return res, nil
	}
	if err := easyjson.Unmarshal(buf, res); err != nil {
		return nil, &resultError{err: err}
	}
	return res, nil
}

type resultError struct {
	err error
}

func (e *resultError) Error() string {
	return string(ErrInvalidResult) + ": " + e.err.Error()
}

func (e *resultError) Is(target error) bool {
	return target == ErrInvalidResult
}

func (e *resultError) Unwrap() error {
	return e.err
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (v *result) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if key == "value" {
			// null is a legitimate variable value
			v.Value = append([]byte(nil), in.Raw()...)
			in.WantComma()
			continue
		}
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "missing":
			v.Missing = in.String()
		case "found":
			v.Found = in.Bool()
		case "ids":
			v.IDs = decodeStrings(in)
		case "messages":
			v.Messages = decodeMessages(in)
		case "serializeError":
			v.SerializeError = in.String()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

func decodeStrings(in *jlexer.Lexer) []string {
	out := []string{}
	in.Delim('[')
	for !in.IsDelim(']') {
		out = append(out, in.String())
		in.WantComma()
	}
	in.Delim(']')
	return out
}

func decodeMessages(in *jlexer.Lexer) []Message {
	out := []Message{}
	in.Delim('[')
	for !in.IsDelim(']') {
		m, _ := in.Interface().(map[string]interface{})
		out = append(out, Message(m))
		in.WantComma()
	}
	in.Delim(']')
	return out
}
