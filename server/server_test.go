package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/sitegui/kaiju/board"
	"github.com/sitegui/kaiju/config"
	"github.com/sitegui/kaiju/jira"
	"github.com/sitegui/kaiju/prometheus"
)

type fakeJira struct {
	issues  map[string]*jira.Issue
	created []interface{}
	updated map[string]interface{}
}

func (f *fakeJira) BoardConfiguration(ctx context.Context, boardID string) (*jira.BoardConfiguration, error) {
	return &jira.BoardConfiguration{
		Name: "Team board",
		ColumnConfig: jira.ColumnConfig{Columns: []jira.Column{
			{Name: "Backlog", Statuses: []jira.ColumnStatus{{ID: "1"}}},
			{Name: "Doing", Statuses: []jira.ColumnStatus{{ID: "3"}}},
		}},
	}, nil
}

func (f *fakeJira) BoardIssues(ctx context.Context, boardID, fields, jql string) (*jira.BoardIssues, error) {
	if jql != "status in (3)" {
		return nil, errors.Errorf("unexpected jql %s", jql)
	}
	return &jira.BoardIssues{Issues: []jira.Issue{*f.issues["KJ-1"]}}, nil
}

func (f *fakeJira) Issue(ctx context.Context, key string) (*jira.Issue, error) {
	issue, ok := f.issues[key]
	if !ok {
		return nil, errors.Errorf("Issue %s does not exist", key)
	}
	return issue, nil
}

func (f *fakeJira) Epic(ctx context.Context, key string) (*jira.Issue, error) {
	return f.Issue(ctx, key)
}

func (f *fakeJira) DevelopmentInfo(ctx context.Context, issueID string) (*jira.DevelopmentInfo, error) {
	return &jira.DevelopmentInfo{}, nil
}

func (f *fakeJira) CreateIssue(ctx context.Context, body interface{}) (*jira.CreatedIssue, error) {
	f.created = append(f.created, body)
	return &jira.CreatedIssue{Key: "KJ-2"}, nil
}

func (f *fakeJira) UpdateIssue(ctx context.Context, key string, body interface{}) error {
	f.updated[key] = body
	return nil
}

func rawFields(fields map[string]interface{}) map[string]json.RawMessage {
	raw := map[string]json.RawMessage{}
	for name, value := range fields {
		raw[name], _ = json.Marshal(value)
	}
	return raw
}

func newTestServer() (*Server, *fakeJira) {
	cfg, err := config.Parse(config.DefaultConfig)
	if err != nil {
		panic(err)
	}
	api := &fakeJira{
		issues: map[string]*jira.Issue{
			"KJ-1": {ID: "1", Key: "KJ-1", Fields: rawFields(map[string]interface{}{
				"summary":     "First",
				"description": "Some text",
				"status":      map[string]string{"name": "Doing"},
				"issuetype":   map[string]string{"name": "Bug"},
				"project":     map[string]string{"key": "PROJ"},
			})},
		},
		updated: map[string]interface{}{},
	}
	b, err := board.Open(context.Background(), cfg, api, "main")
	if err != nil {
		panic(err)
	}
	metrics := prometheus.NewClient(prom.NewRegistry())
	return New(cfg, b, api, Options{Metrics: metrics}), api
}

func serve(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	s.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestServer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	Convey("Static files", t, func() {
		s, _ := newTestServer()

		Convey("It should serve the embedded page", func() {
			res := serve(s, http.MethodGet, "/", "", nil)
			So(res.Code, ShouldEqual, http.StatusOK)
			So(res.Header().Get("Content-Type"), ShouldEqual, "text/html")
			So(res.Body.String(), ShouldContainSubstring, "/index.js")
		})

		Convey("It should serve every asset with its type", func() {
			for path, contentType := range map[string]string{
				"/index.js":    "text/javascript",
				"/index.css":   "text/css",
				"/favicon.png": "image/png",
			} {
				res := serve(s, http.MethodGet, path, "", nil)
				So(res.Code, ShouldEqual, http.StatusOK)
				So(res.Header().Get("Content-Type"), ShouldEqual, contentType)
				So(res.Body.Len(), ShouldBeGreaterThan, 0)
			}
		})
	})

	Convey("API", t, func() {
		s, api := newTestServer()

		Convey("It should return the board", func() {
			res := serve(s, http.MethodGet, "/api/board", "", nil)
			So(res.Code, ShouldEqual, http.StatusOK)

			var data board.Data
			So(json.Unmarshal(res.Body.Bytes(), &data), ShouldBeNil)
			So(data.Name, ShouldEqual, "Team board")
			So(data.Columns, ShouldHaveLength, 1)
			So(data.Columns[0].Issues[0].Summary, ShouldEqual, "First")
		})

		Convey("It should return issue details", func() {
			res := serve(s, http.MethodGet, "/api/issue/KJ-1", "", nil)
			So(res.Code, ShouldEqual, http.StatusOK)
			So(res.Body.String(), ShouldContainSubstring, `"jira_link":"https://your-domain.atlassian.net/browse/KJ-1"`)
			So(res.Body.String(), ShouldContainSubstring, `"description":"Some text"`)
		})

		Convey("It should answer failures with the error chain", func() {
			res := serve(s, http.MethodGet, "/api/issue/KJ-404", "", nil)
			So(res.Code, ShouldEqual, http.StatusInternalServerError)
			So(res.Body.String(), ShouldContainSubstring, "Issue KJ-404 does not exist")
			So(res.Body.String(), ShouldContainSubstring, "Failed to load issue KJ-404")
		})

		Convey("It should give issue templates", func() {
			res := serve(s, http.MethodGet, "/api/new-issue-code", "", nil)
			So(res.Code, ShouldEqual, http.StatusOK)
			So(res.Body.String(), ShouldStartWith, "# Summary\n")

			res = serve(s, http.MethodGet, "/api/edit-issue-code/KJ-1", "", nil)
			So(res.Code, ShouldEqual, http.StatusOK)
			So(res.Body.String(), ShouldStartWith, "# First\n")
			So(res.Body.String(), ShouldContainSubstring, "project: My project\n")
		})

		Convey("It should create issues from markdown", func() {
			res := serve(s, http.MethodPost, "/api/issue", "# New one\nText\n# Kaiju\ntype: Task\n", nil)
			So(res.Code, ShouldEqual, http.StatusOK)
			So(res.Body.String(), ShouldContainSubstring, `"key":"KJ-2"`)

			So(api.created, ShouldHaveLength, 1)
			So(api.created[0], ShouldResemble, map[string]interface{}{
				"fields": map[string]interface{}{
					"summary":     "New one",
					"description": "Text",
					"issuetype":   map[string]interface{}{"name": "Task"},
				},
			})
		})

		Convey("It should update issues from markdown", func() {
			res := serve(s, http.MethodPost, "/api/issue/KJ-1", "# Renamed\n# Kaiju\n", nil)
			So(res.Code, ShouldEqual, http.StatusNoContent)
			So(api.updated["KJ-1"], ShouldNotBeNil)
		})

		Convey("It should reject invalid markdown", func() {
			res := serve(s, http.MethodPost, "/api/issue", "no summary", nil)
			So(res.Code, ShouldEqual, http.StatusInternalServerError)
			So(api.created, ShouldBeEmpty)
		})
	})

	Convey("CORS", t, func() {
		s, _ := newTestServer()

		Convey("It should allow local origins", func() {
			res := serve(s, http.MethodGet, "/api/new-issue-code", "", map[string]string{"Origin": "http://localhost:3000"})
			So(res.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "http://localhost:3000")
			So(res.Header().Get("Access-Control-Allow-Methods"), ShouldEqual, http.MethodGet)
		})

		Convey("It should answer local preflights", func() {
			res := serve(s, http.MethodOptions, "/api/board", "", map[string]string{"Origin": "http://localhost:3000"})
			So(res.Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("It should ignore other origins", func() {
			res := serve(s, http.MethodGet, "/api/new-issue-code", "", map[string]string{"Origin": "https://evil.example.com"})
			So(res.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
		})
	})

	Convey("Metrics", t, func() {
		s, _ := newTestServer()

		Convey("It should expose request metrics", func() {
			serve(s, http.MethodGet, "/api/new-issue-code", "", nil)

			res := serve(s, http.MethodGet, "/metrics", "", nil)
			So(res.Code, ShouldEqual, http.StatusOK)
			So(res.Body.String(), ShouldContainSubstring, `kaiju_http_requests_total{method="GET",path="/api/new-issue-code",status="200"} 1`)
		})
	})

	Convey("Address", t, func() {
		So(Address(&config.Config{ServerIP: "127.0.0.1", ServerPort: 8017}), ShouldEqual, "127.0.0.1:8017")
	})
}
