package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/die-net/lrucache"
	"github.com/gregjones/httpcache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sitegui/kaiju/config"
)

const (
	clientLogCategory = "jira_client"

	maxHTTPCacheAge   = 24 * time.Hour
	maxErrorBodyBytes = 512
)

// API is the subset of the Jira REST API that kaiju uses.
type API interface {
	BoardConfiguration(ctx context.Context, boardID string) (*BoardConfiguration, error)
	BoardIssues(ctx context.Context, boardID, fields, jql string) (*BoardIssues, error)
	Issue(ctx context.Context, key string) (*Issue, error)
	DevelopmentInfo(ctx context.Context, issueID string) (*DevelopmentInfo, error)
	CreateIssue(ctx context.Context, body interface{}) (*CreatedIssue, error)
	UpdateIssue(ctx context.Context, key string, body interface{}) error
}

// StatusError is returned when Jira answers with a non-2xx status.
type StatusError struct {
	Method, URL string
	StatusCode  int
	Body        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Jira answered %s %s with status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

type Client struct {
	host, email, token string
	http               *http.Client
}

var _ API = (*Client)(nil)

// NewClient creates a client for the configured Jira instance. Responses are kept in an
// in-memory HTTP cache of http_cache_megabytes, so that requests repeated after the request
// cache expired can be answered by revalidation.
func NewClient(cfg *config.Config) *Client {
	var transport http.RoundTripper = http.DefaultTransport
	if cfg.HTTPCacheMegabytes > 0 {
		transport = NewCachingTransport(int64(cfg.HTTPCacheMegabytes) * 1024 * 1024)
	}
	return &Client{
		host:  cfg.APIHost,
		email: cfg.Email,
		token: cfg.Token,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.APITimeout(),
		},
	}
}

func NewCachingTransport(maxSize int64) *httpcache.Transport {
	t := httpcache.NewTransport(lrucache.New(maxSize, int64(maxHTTPCacheAge/time.Second)))
	t.MarkCachedResponses = true
	return t
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, result interface{}) error {
	u := c.host + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, result)
}

func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, c.host+"/"+path, body, result)
}

func (c *Client) Put(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPut, c.host+"/"+path, body, result)
}

func (c *Client) BoardConfiguration(ctx context.Context, boardID string) (*BoardConfiguration, error) {
	var res BoardConfiguration
	err := c.Get(ctx, "rest/agile/1.0/board/"+url.PathEscape(boardID)+"/configuration", nil, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) BoardIssues(ctx context.Context, boardID, fields, jql string) (*BoardIssues, error) {
	query := url.Values{}
	query.Set("fields", fields)
	query.Set("jql", jql)

	var res BoardIssues
	err := c.Get(ctx, "rest/agile/1.0/board/"+url.PathEscape(boardID)+"/issue", query, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Issue(ctx context.Context, key string) (*Issue, error) {
	var res Issue
	if err := c.Get(ctx, "rest/api/2/issue/"+url.PathEscape(key), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DevelopmentInfo(ctx context.Context, issueID string) (*DevelopmentInfo, error) {
	query := url.Values{}
	query.Set("issueId", issueID)

	var res DevelopmentInfo
	if err := c.Get(ctx, "rest/dev-status/latest/issue/summary", query, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CreateIssue(ctx context.Context, body interface{}) (*CreatedIssue, error) {
	var res CreatedIssue
	if err := c.Post(ctx, "rest/api/2/issue", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdateIssue(ctx context.Context, key string, body interface{}) error {
	return c.Put(ctx, "rest/api/2/issue/"+url.PathEscape(key), body, nil)
}

func (c *Client) do(ctx context.Context, method, u string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "Failed to encode body for %s %s", method, u)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, u, reqBody)
	if err != nil {
		return errors.WithStack(err)
	}
	req = req.WithContext(ctx)
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "Request %s %s failed", method, u)
	}
	defer res.Body.Close()

	logger(clientLogCategory, "request").WithFields(logrus.Fields{
		"method":   method,
		"url":      u,
		"status":   res.StatusCode,
		"cached":   res.Header.Get(httpcache.XFromCache) != "",
		"duration": time.Since(start).String(),
	}).Debug("Jira request finished")

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		excerpt, _ := ioutil.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))
		return errors.WithStack(&StatusError{Method: method, URL: u, StatusCode: res.StatusCode, Body: string(excerpt)})
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(result); err != nil {
		return errors.Wrapf(err, "Failed to decode response of %s %s", method, u)
	}
	return nil
}
