package issuecode

import (
	"fmt"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/sitegui/kaiju/config"
)

func testConfig() *config.Config {
	cfg, err := config.Parse(config.DefaultConfig)
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestParseMarkdown(t *testing.T) {
	Convey("ParseMarkdown", t, func() {
		Convey("It should split summary, description and commands", func() {
			issue, err := ParseMarkdown("#    Some summary  \n" +
				"some  \n" +
				"description \n" +
				"# Kaiju \n" +
				"command_1  : value_10\n" +
				"command_2:    value_20 ,   value_21\n" +
				"command_1: value_11\n" +
				"<!--command_1: value_12-->\n" +
				"# More\n" +
				"even more description")

			So(err, ShouldBeNil)
			So(issue, ShouldResemble, &Issue{
				Summary:     "Some summary",
				Description: "some  \ndescription \n# More\neven more description",
				Commands: map[string][]string{
					"command_1": {"value_10", "value_11"},
					"command_2": {"value_20", "value_21"},
				},
			})
		})

		Convey("It should skip reported errors and blank lines", func() {
			issue, err := ParseMarkdown("-- Failed to parse issue\n-- Please edit it\n# Title\n\n# Kaiju\n\ntype: Bug\n")
			So(err, ShouldBeNil)
			So(issue.Summary, ShouldEqual, "Title")
			So(issue.Description, ShouldEqual, "")
			So(issue.Commands, ShouldResemble, map[string][]string{"type": {"Bug"}})
		})

		Convey("It should require a summary line", func() {
			_, err := ParseMarkdown("Title\n# Kaiju\n")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "must start with a '#'")
		})

		Convey("It should require the Kaiju section", func() {
			_, err := ParseMarkdown("# Title\nSome description\n")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "No Kaiju section")
		})

		Convey("It should reject commands without a colon", func() {
			_, err := ParseMarkdown("# Title\n# Kaiju\ntype Bug\n")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "colon")
		})
	})
}

func TestTemplates(t *testing.T) {
	Convey("NewIssue", t, func() {
		Convey("It should list defaults and alternatives", func() {
			So(NewIssue(testConfig()), ShouldEqual, "# Summary\n"+
				"\n"+
				"Description\n"+
				"\n"+
				"# Kaiju\n"+
				"\n"+
				"type: Story\n"+
				"<!--type: Bug, Task-->\n"+
				"<!--project: My project-->\n")
		})

		Convey("It should parse back into a valid body", func() {
			issue, err := ParseMarkdown(NewIssue(testConfig()))
			So(err, ShouldBeNil)

			body, err := PrepareAPIBody(testConfig(), issue)
			So(err, ShouldBeNil)
			So(body["fields"], ShouldResemble, map[string]interface{}{
				"summary":     "Summary",
				"description": "Description",
				"issuetype":   map[string]interface{}{"name": "Story"},
			})
		})
	})

	Convey("writeValues", t, func() {
		Convey("It should wrap alternatives without losing any", func() {
			var values []string
			for i := 0; i < 8; i++ {
				values = append(values, fmt.Sprintf("value%05d", i))
			}

			var b strings.Builder
			writeValues(&b, "x", values, nil)

			lines := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
			So(lines, ShouldHaveLength, 2)
			for _, line := range lines {
				So(len(line), ShouldBeLessThanOrEqualTo, maxLine)
				So(line, ShouldStartWith, "<!--x: ")
				So(line, ShouldEndWith, "-->")
			}
			for _, value := range values {
				So(b.String(), ShouldContainSubstring, value)
			}
		})
	})

	Convey("EditIssue", t, func() {
		fields := map[string]interface{}{
			"summary":     "Existing",
			"description": nil,
			"issuetype":   map[string]interface{}{"name": "Bug"},
			"project":     map[string]interface{}{"key": "PROJ"},
			"labels":      []interface{}{"l1", "l2"},
		}

		Convey("It should show current values by their name", func() {
			code, err := EditIssue(testConfig(), fields)
			So(err, ShouldBeNil)
			So(code, ShouldStartWith, "# Existing\n")
			So(code, ShouldContainSubstring, "type: Bug\n<!--type: Story, Task-->\n")
			So(code, ShouldContainSubstring, "project: My project\n")
			So(code, ShouldContainSubstring, "label: l1\nlabel: l2\n")
		})

		Convey("It should round trip into the same fields", func() {
			code, err := EditIssue(testConfig(), fields)
			So(err, ShouldBeNil)
			issue, err := ParseMarkdown(code)
			So(err, ShouldBeNil)

			body, err := PrepareAPIBody(testConfig(), issue)
			So(err, ShouldBeNil)
			So(body["fields"], ShouldResemble, map[string]interface{}{
				"summary":     "Existing",
				"description": "",
				"issuetype":   map[string]interface{}{"name": "Bug"},
				"project":     map[string]interface{}{"key": "PROJ"},
				"labels":      []interface{}{"l1", "l2"},
			})
		})

		Convey("It should require a summary", func() {
			_, err := EditIssue(testConfig(), map[string]interface{}{})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPrepareAPIBody(t *testing.T) {
	Convey("PrepareAPIBody", t, func() {
		cfg := testConfig()

		Convey("It should translate commands into api fields", func() {
			body, err := PrepareAPIBody(cfg, &Issue{
				Summary:     "S",
				Description: "D",
				Commands: map[string][]string{
					"type":                 {"Bug"},
					"project":              {"My project"},
					"label":                {"a", "b"},
					"fields.priority.name": {"High"},
				},
			})
			So(err, ShouldBeNil)
			So(body, ShouldResemble, map[string]interface{}{
				"fields": map[string]interface{}{
					"summary":     "S",
					"description": "D",
					"issuetype":   map[string]interface{}{"name": "Bug"},
					"project":     map[string]interface{}{"key": "PROJ"},
					"labels":      []interface{}{"a", "b"},
					"priority":    map[string]interface{}{"name": "High"},
				},
			})
		})

		Convey("It should keep values missing from the bag", func() {
			body, err := PrepareAPIBody(cfg, &Issue{Commands: map[string][]string{"project": {"OTHER"}}})
			So(err, ShouldBeNil)
			So(body["fields"].(map[string]interface{})["project"], ShouldResemble, map[string]interface{}{"key": "OTHER"})
		})

		Convey("It should refuse to set a scalar twice", func() {
			_, err := PrepareAPIBody(cfg, &Issue{Commands: map[string][]string{"type": {"Bug", "Task"}}})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "multiple times")
		})

		Convey("It should fail on a missing value bag", func() {
			cfg.ValueBag = nil
			_, err := PrepareAPIBody(cfg, &Issue{Commands: map[string][]string{"project": {"PROJ"}}})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "Value bag \"projects\" not found")
		})
	})
}

func TestBodyPaths(t *testing.T) {
	Convey("setInBody", t, func() {
		body := map[string]interface{}{}

		Convey("It should append an object per value for inner arrays", func() {
			So(setInBody(body, "fields.components[].name", "a"), ShouldBeNil)
			So(setInBody(body, "fields.components[].name", "b"), ShouldBeNil)
			So(body, ShouldResemble, map[string]interface{}{
				"fields": map[string]interface{}{
					"components": []interface{}{
						map[string]interface{}{"name": "a"},
						map[string]interface{}{"name": "b"},
					},
				},
			})
		})

		Convey("It should refuse to go through a scalar", func() {
			So(setInBody(body, "fields", "x"), ShouldBeNil)
			So(setInBody(body, "fields.summary", "y"), ShouldNotBeNil)
		})
	})

	Convey("getInBody", t, func() {
		body := map[string]interface{}{
			"fields": map[string]interface{}{
				"components": []interface{}{
					map[string]interface{}{"name": "a"},
					map[string]interface{}{"name": "b"},
				},
				"labels":   []interface{}{"x"},
				"assignee": nil,
			},
		}

		Convey("It should follow arrays", func() {
			values, err := getInBody(body, "fields.components[].name")
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []string{"a", "b"})

			values, err = getInBody(body, "fields.labels[]")
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []string{"x"})
		})

		Convey("It should skip nulls", func() {
			values, err := getInBody(body, "fields.assignee.name")
			So(err, ShouldBeNil)
			So(values, ShouldBeEmpty)
		})

		Convey("It should only read strings", func() {
			_, err := getInBody(body, "fields.labels")
			So(err, ShouldNotBeNil)
		})
	})
}
