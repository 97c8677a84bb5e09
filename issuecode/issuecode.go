// Package issuecode converts between Jira issues and the markdown format kaiju asks users to
// edit: a "# summary" line, the description, then a "# Kaiju" section with one
// "field: value" line per issue field.
package issuecode

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sitegui/kaiju/config"
)

const (
	commentPrefix = "<!--"
	commentSuffix = "-->"
	separator     = ", "
	maxLine       = 80

	kaijuHeader = "# Kaiju"
	errorPrefix = "-- "
)

// Issue is the parsed markdown of an issue.
type Issue struct {
	Summary     string
	Description string
	Commands    map[string][]string
}

// NewIssue returns the markdown template to create an issue.
func NewIssue(cfg *config.Config) string {
	var b strings.Builder
	b.WriteString("# Summary\n\nDescription\n\n" + kaijuHeader + "\n\n")

	for _, field := range cfg.IssueFields {
		var current []string
		if field.DefaultValue != nil {
			current = []string{*field.DefaultValue}
		}
		writeFieldCode(&b, cfg, field, current)
	}
	return b.String()
}

// EditIssue returns the markdown of an existing issue, given its fields as returned by Jira.
// Only the fields declared in the config are listed.
func EditIssue(cfg *config.Config, fields map[string]interface{}) (string, error) {
	summary, ok := fields["summary"].(string)
	if !ok {
		return "", errors.New("Could not extract summary field")
	}
	description, ok := fields["description"].(string)
	if !ok && fields["description"] != nil {
		return "", errors.New("Could not extract description field")
	}

	var b strings.Builder
	b.WriteString("# " + summary + "\n\n" + description + "\n\n" + kaijuHeader + "\n\n")

	body := map[string]interface{}{"fields": fields}
	for _, field := range cfg.IssueFields {
		current, err := getInBody(body, field.APIField)
		if err != nil {
			return "", errors.Wrapf(err, "Failed to get current values for %s", field.APIField)
		}
		if field.ValuesFrom != "" {
			current = namesInBag(cfg.ValueBag[field.ValuesFrom], current)
		}
		writeFieldCode(&b, cfg, field, current)
	}
	return b.String(), nil
}

// ParseMarkdown parses the markdown of an issue. Leading lines starting with "-- " are error
// reports from a previous attempt and are ignored.
func ParseMarkdown(source string) (*Issue, error) {
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.HasPrefix(lines[0], errorPrefix) {
		lines = lines[1:]
	}

	if len(lines) == 0 {
		return nil, errors.New("The first line must indicate the summary")
	}
	if !strings.HasPrefix(lines[0], "#") {
		return nil, errors.New("The summary line must start with a '#'")
	}
	issue := &Issue{
		Summary:  strings.TrimSpace(strings.TrimPrefix(lines[0], "#")),
		Commands: map[string][]string{},
	}

	var description []string
	inKaiju, hasKaiju := false, false
	for _, line := range lines[1:] {
		trimmed := strings.TrimSpace(line)
		switch {
		case inKaiju && strings.HasPrefix(trimmed, "# "):
			inKaiju = false
			description = append(description, line)
		case inKaiju:
			if trimmed == "" || strings.HasPrefix(trimmed, commentPrefix) && strings.HasSuffix(trimmed, commentSuffix) {
				continue
			}
			colon := strings.Index(line, ":")
			if colon < 0 {
				return nil, errors.Errorf("Kaiju command must have a colon (:) separating name and value in %q", line)
			}
			name := strings.TrimSpace(line[:colon])
			for _, value := range strings.Split(line[colon+1:], ",") {
				issue.Commands[name] = append(issue.Commands[name], strings.TrimSpace(value))
			}
		case trimmed == kaijuHeader:
			inKaiju, hasKaiju = true, true
		default:
			description = append(description, line)
		}
	}

	if !hasKaiju {
		return nil, errors.Errorf("No Kaiju section starting with '%s' was found", kaijuHeader)
	}
	issue.Description = strings.TrimSpace(strings.Join(description, "\n"))
	return issue, nil
}

// PrepareAPIBody builds the JSON body to create or update issue. Commands naming a
// configured field are written to its api_field, translated through its value bag if it has
// one. Other commands are taken as api paths themselves.
func PrepareAPIBody(cfg *config.Config, issue *Issue) (map[string]interface{}, error) {
	body := map[string]interface{}{}
	if err := setInBody(body, "fields.summary", issue.Summary); err != nil {
		return nil, err
	}
	if err := setInBody(body, "fields.description", issue.Description); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(issue.Commands))
	for name := range issue.Commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := applyCommand(cfg, body, name, issue.Commands[name]); err != nil {
			return nil, errors.Wrapf(err, "Failed to apply command %q", name)
		}
	}
	return body, nil
}

func applyCommand(cfg *config.Config, body map[string]interface{}, name string, values []string) error {
	field, ok := cfg.IssueField(name)
	if !ok {
		for _, value := range values {
			if err := setInBody(body, name, value); err != nil {
				return err
			}
		}
		return nil
	}

	var bag map[string]string
	if field.ValuesFrom != "" {
		if bag, ok = cfg.ValueBag[field.ValuesFrom]; !ok {
			return errors.Errorf("Value bag %q not found", field.ValuesFrom)
		}
	}

	for _, value := range values {
		if bag != nil {
			if translated, ok := bag[value]; ok {
				value = translated
			} else {
				logrus.WithFields(logrus.Fields{
					"category": "issue_code",
					"value":    value,
					"bag":      field.ValuesFrom,
				}).Info("Value not found in value bag")
			}
		}
		if err := setInBody(body, field.APIField, value); err != nil {
			return err
		}
	}
	return nil
}

func writeFieldCode(b *strings.Builder, cfg *config.Config, field config.IssueFieldConfig, current []string) {
	values := field.Values
	if field.ValuesFrom != "" {
		bag, ok := cfg.ValueBag[field.ValuesFrom]
		if !ok {
			logrus.WithFields(logrus.Fields{
				"category": "issue_code",
				"bag":      field.ValuesFrom,
				"field":    field.Name,
			}).Warn("Missing value bag")
		}
		values = make([]string, 0, len(bag))
		for name := range bag {
			values = append(values, name)
		}
		sort.Strings(values)
	}
	writeValues(b, field.Name, values, current)
}

// writeValues lists the current values of a field, then the other possible values inside
// comments wrapped at maxLine columns.
func writeValues(b *strings.Builder, name string, values, current []string) {
	seen := map[string]bool{}
	for _, value := range current {
		seen[value] = true
		b.WriteString(name + ": " + value + "\n")
	}

	pending := ""
	for _, value := range values {
		if seen[value] {
			continue
		}
		switch {
		case pending == "":
			pending = commentPrefix + name + ": " + value
		case len(pending)+len(separator)+len(value)+len(commentSuffix) <= maxLine:
			pending += separator + value
		default:
			b.WriteString(pending + commentSuffix + "\n")
			pending = commentPrefix + name + ": " + value
		}
	}
	if pending != "" {
		b.WriteString(pending + commentSuffix + "\n")
	}
}

// namesInBag shows values by their name in the bag when there is one.
func namesInBag(bag map[string]string, values []string) []string {
	byValue := make(map[string]string, len(bag))
	for name, value := range bag {
		byValue[value] = name
	}
	names := make([]string, len(values))
	for i, value := range values {
		if name, ok := byValue[value]; ok {
			names[i] = name
		} else {
			names[i] = value
		}
	}
	return names
}
