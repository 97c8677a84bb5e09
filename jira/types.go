package jira

import "encoding/json"

type BoardConfiguration struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	ColumnConfig ColumnConfig `json:"columnConfig"`
}

type ColumnConfig struct {
	Columns []Column `json:"columns"`
}

type Column struct {
	Name     string         `json:"name"`
	Statuses []ColumnStatus `json:"statuses"`
}

type ColumnStatus struct {
	ID string `json:"id"`
}

type BoardIssues struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue is an issue as returned by Jira. Fields are kept raw since which ones exist, and
// their shape, depends on the instance configuration.
type Issue struct {
	ID     string                     `json:"id"`
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// StringField decodes a string field. A missing or null field is reported as not found.
func (i *Issue) StringField(name string) (string, bool) {
	raw, ok := i.Fields[name]
	if !ok {
		return "", false
	}
	var value *string
	if err := json.Unmarshal(raw, &value); err != nil || value == nil {
		return "", false
	}
	return *value, true
}

// DecodeField decodes a field into target. It returns false when the field is missing or null.
func (i *Issue) DecodeField(name string, target interface{}) (bool, error) {
	raw, ok := i.Fields[name]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	return true, json.Unmarshal(raw, target)
}

// FieldsObject returns the fields decoded as generic JSON.
func (i *Issue) FieldsObject() (map[string]interface{}, error) {
	object := make(map[string]interface{}, len(i.Fields))
	for name, raw := range i.Fields {
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, err
		}
		object[name] = value
	}
	return object, nil
}

type DevelopmentInfo struct {
	Summary DevelopmentSummary `json:"summary"`
}

type DevelopmentSummary struct {
	PullRequest DevelopmentItem `json:"pullrequest"`
	Branch      DevelopmentItem `json:"branch"`
	Repository  DevelopmentItem `json:"repository"`
}

type DevelopmentItem struct {
	Overall DevelopmentOverall `json:"overall"`
}

type DevelopmentOverall struct {
	Count int    `json:"count"`
	State string `json:"state,omitempty"`
}

type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}
