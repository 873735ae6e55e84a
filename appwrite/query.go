package appwrite

import "encoding/json"

// Query is one Appwrite list query, sent as a JSON string in queries[].
type Query struct {
	Method    string        `json:"method"`
	Attribute string        `json:"attribute,omitempty"`
	Values    []interface{} `json:"values,omitempty"`
}

func (q Query) String() string {
	b, _ := json.Marshal(q)
	return string(b)
}

func OrderDesc(attribute string) Query {
	return Query{Method: "orderDesc", Attribute: attribute}
}

func Equal(attribute string, values ...interface{}) Query {
	return Query{Method: "equal", Attribute: attribute, Values: values}
}

func Limit(n int) Query {
	return Query{Method: "limit", Values: []interface{}{n}}
}

func CursorAfter(documentId string) Query {
	return Query{Method: "cursorAfter", Values: []interface{}{documentId}}
}
