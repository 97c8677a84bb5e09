package jira

import (
	"context"
	"fmt"

	"github.com/sitegui/kaiju/cache"
	"github.com/sitegui/kaiju/config"
)

type boardConfigurationKey struct {
	id string
}

func (k boardConfigurationKey) Kind() string   { return "board_configuration" }
func (k boardConfigurationKey) String() string { return "board_configuration:" + k.id }

type boardIssuesKey struct {
	id, fields, jql string
}

func (k boardIssuesKey) Kind() string { return "board_issues" }
func (k boardIssuesKey) String() string {
	return fmt.Sprintf("board_issues:%s:%s:%s", k.id, k.fields, k.jql)
}

// issueKey is shared by issues and epics: an epic is an issue, only kept fresh for longer.
type issueKey struct {
	key string
}

func (k issueKey) Kind() string   { return "issue" }
func (k issueKey) String() string { return "issue:" + k.key }

type developmentInfoKey struct {
	issueID string
}

func (k developmentInfoKey) Kind() string   { return "development_info" }
func (k developmentInfoKey) String() string { return "development_info:" + k.issueID }

// Cached serves read requests from a request cache, so that concurrent or repeated identical
// requests reach Jira only once per TTL. Writes go straight to Jira and clear the cache.
type Cached struct {
	api   API
	cache cache.Cache
	ttl   config.CacheConfig
}

var _ API = (*Cached)(nil)

func NewCached(api API, c cache.Cache, ttl config.CacheConfig) *Cached {
	return &Cached{api: api, cache: c, ttl: ttl}
}

func (c *Cached) BoardConfiguration(ctx context.Context, boardID string) (*BoardConfiguration, error) {
	return cache.Load(ctx, c.cache, boardConfigurationKey{boardID}, c.ttl.BoardConfigurationTTL(),
		func(ctx context.Context) (*BoardConfiguration, error) {
			return c.api.BoardConfiguration(ctx, boardID)
		})
}

func (c *Cached) BoardIssues(ctx context.Context, boardID, fields, jql string) (*BoardIssues, error) {
	return cache.Load(ctx, c.cache, boardIssuesKey{boardID, fields, jql}, c.ttl.BoardIssuesTTL(),
		func(ctx context.Context) (*BoardIssues, error) {
			return c.api.BoardIssues(ctx, boardID, fields, jql)
		})
}

func (c *Cached) Issue(ctx context.Context, key string) (*Issue, error) {
	return cache.Load(ctx, c.cache, issueKey{key}, c.ttl.IssueTTL(), c.fetchIssue(key))
}

// Epic loads an issue that is used as an epic. It shares the entry of Issue.
func (c *Cached) Epic(ctx context.Context, key string) (*Issue, error) {
	return cache.Load(ctx, c.cache, issueKey{key}, c.ttl.EpicTTL(), c.fetchIssue(key))
}

func (c *Cached) DevelopmentInfo(ctx context.Context, issueID string) (*DevelopmentInfo, error) {
	return cache.Load(ctx, c.cache, developmentInfoKey{issueID}, c.ttl.DevelopmentInfoTTL(),
		func(ctx context.Context) (*DevelopmentInfo, error) {
			return c.api.DevelopmentInfo(ctx, issueID)
		})
}

func (c *Cached) CreateIssue(ctx context.Context, body interface{}) (*CreatedIssue, error) {
	created, err := c.api.CreateIssue(ctx, body)
	if err != nil {
		return nil, err
	}
	c.cache.Clear()
	logger(cachedLogCategory, "create").WithField("key", created.Key).Info("Created issue, cleared request cache")
	return created, nil
}

func (c *Cached) UpdateIssue(ctx context.Context, key string, body interface{}) error {
	if err := c.api.UpdateIssue(ctx, key, body); err != nil {
		return err
	}
	c.cache.Clear()
	logger(cachedLogCategory, "update").WithField("key", key).Info("Updated issue, cleared request cache")
	return nil
}

func (c *Cached) fetchIssue(key string) func(context.Context) (*Issue, error) {
	return func(ctx context.Context) (*Issue, error) {
		return c.api.Issue(ctx, key)
	}
}
