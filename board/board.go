package board

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sitegui/kaiju/config"
	"github.com/sitegui/kaiju/jira"
	"golang.org/x/sync/errgroup"
)

const boardLogCategory = "board"

// API is what a board needs from Jira. jira.Cached implements it.
type API interface {
	BoardConfiguration(ctx context.Context, boardID string) (*jira.BoardConfiguration, error)
	BoardIssues(ctx context.Context, boardID, fields, jql string) (*jira.BoardIssues, error)
	Issue(ctx context.Context, key string) (*jira.Issue, error)
	Epic(ctx context.Context, key string) (*jira.Issue, error)
	DevelopmentInfo(ctx context.Context, issueID string) (*jira.DevelopmentInfo, error)
}

type Board struct {
	api     API
	config  config.BoardConfig
	apiHost string
	name    string
	columns []column
}

type column struct {
	name      string
	statusIDs []string
}

type Data struct {
	Name    string       `json:"name"`
	Columns []ColumnData `json:"columns"`
}

type ColumnData struct {
	Name   string      `json:"name"`
	Issues []IssueData `json:"issues"`
}

type IssueData struct {
	Key     string   `json:"key"`
	Summary string   `json:"summary"`
	Status  string   `json:"status"`
	Avatars []Avatar `json:"avatars"`
	Epic    *Epic    `json:"epic"`
	Flagged bool     `json:"flagged"`
}

// IssueDetails is what the issue modal shows: the card data plus the description and the
// development activity.
type IssueDetails struct {
	IssueData
	Description   string `json:"description"`
	JiraLink      string `json:"jira_link"`
	Branches      int    `json:"branches"`
	MergeRequests int    `json:"merge_requests"`
}

type Avatar struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type Epic struct {
	Key       string  `json:"key"`
	ShortName string  `json:"short_name"`
	Color     *string `json:"color"`
}

// Open resolves the named board from the config and loads its column layout from Jira.
func Open(ctx context.Context, cfg *config.Config, api API, name string) (*Board, error) {
	boardConfig, err := cfg.Board(name)
	if err != nil {
		return nil, err
	}

	logger("open").WithField("board_id", boardConfig.BoardID).Info("Will request configuration from Jira")
	res, err := api.BoardConfiguration(ctx, boardConfig.BoardID)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to load configuration of board %s", name)
	}

	jiraColumns := res.ColumnConfig.Columns
	if !boardConfig.ShowFirstColumn && len(jiraColumns) > 0 {
		jiraColumns = jiraColumns[1:]
	}
	columns := make([]column, 0, len(jiraColumns))
	for _, c := range jiraColumns {
		ids := make([]string, 0, len(c.Statuses))
		for _, status := range c.Statuses {
			ids = append(ids, status.ID)
		}
		columns = append(columns, column{name: c.Name, statusIDs: ids})
	}

	return &Board{
		api:     api,
		config:  boardConfig,
		apiHost: cfg.APIHost,
		name:    res.Name,
		columns: columns,
	}, nil
}

// Load fetches the issues of every column. Columns and issues are loaded concurrently.
func (b *Board) Load(ctx context.Context) (*Data, error) {
	fields := b.requestFields()

	columns := make([]ColumnData, len(b.columns))
	g, ctx := errgroup.WithContext(ctx)
	for i := range b.columns {
		i := i
		g.Go(func() error {
			data, err := b.loadColumn(ctx, fields, b.columns[i], i == len(b.columns)-1)
			if err != nil {
				return err
			}
			columns[i] = *data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Data{Name: b.name, Columns: columns}, nil
}

// Issue returns the details of a single issue.
func (b *Board) Issue(ctx context.Context, key string) (*IssueDetails, error) {
	issue, err := b.api.Issue(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to load issue %s", key)
	}

	data, err := b.convertIssue(ctx, issue)
	if err != nil {
		return nil, err
	}
	description, _ := issue.StringField("description")

	details := &IssueDetails{
		IssueData:   *data,
		Description: description,
		JiraLink:    b.apiHost + "/browse/" + issue.Key,
	}

	dev, err := b.api.DevelopmentInfo(ctx, issue.ID)
	if err != nil {
		logger("development_info").WithError(err).WithField("key", key).Warn("Could not load development info")
	} else {
		details.Branches = dev.Summary.Branch.Overall.Count
		details.MergeRequests = dev.Summary.PullRequest.Overall.Count
	}
	return details, nil
}

// requestFields lists the issue fields needed to render the cards, sorted and without repetition.
func (b *Board) requestFields() string {
	set := map[string]bool{"status": true, "summary": true, "parent": true}
	for _, avatar := range b.config.CardAvatars {
		set[avatar] = true
	}
	if b.config.Flag != nil {
		set[*b.config.Flag] = true
	}

	fields := make([]string, 0, len(set))
	for field := range set {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return strings.Join(fields, ",")
}

func (b *Board) columnJQL(c column, isLast bool) string {
	jql := "status in (" + strings.Join(c.statusIDs, ",") + ")"
	if isLast && b.config.FilterLastColumnResolved != nil {
		jql += " and resolved >= " + strconv.Quote(*b.config.FilterLastColumnResolved)
	}
	return jql
}

func (b *Board) loadColumn(ctx context.Context, fields string, c column, isLast bool) (*ColumnData, error) {
	jql := b.columnJQL(c, isLast)

	start := time.Now()
	log := logger("column").WithField("column", c.name)
	log.Debug("Will request Jira for issues in column")
	res, err := b.api.BoardIssues(ctx, b.config.BoardID, fields, jql)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to load column %s", c.name)
	}
	log.WithField("duration", time.Since(start).String()).Debug("Finished column")

	issues := make([]IssueData, len(res.Issues))
	g, ctx := errgroup.WithContext(ctx)
	for i := range res.Issues {
		i := i
		g.Go(func() error {
			data, err := b.convertIssue(ctx, &res.Issues[i])
			if err != nil {
				return err
			}
			issues[i] = *data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ColumnData{Name: c.name, Issues: issues}, nil
}

func (b *Board) convertIssue(ctx context.Context, issue *jira.Issue) (*IssueData, error) {
	summary, ok := issue.StringField("summary")
	if !ok {
		return nil, errors.Errorf("Could not extract summary field of %s", issue.Key)
	}

	var status struct {
		Name string `json:"name"`
	}
	if found, err := issue.DecodeField("status", &status); err != nil || !found {
		return nil, errors.Errorf("Could not extract status field of %s", issue.Key)
	}

	avatars, err := b.avatars(issue)
	if err != nil {
		return nil, err
	}

	data := &IssueData{
		Key:     issue.Key,
		Summary: summary,
		Status:  status.Name,
		Avatars: avatars,
		Flagged: b.flagged(issue),
	}

	var parent struct {
		Key string `json:"key"`
	}
	if found, err := issue.DecodeField("parent", &parent); err != nil {
		return nil, errors.Wrapf(err, "Could not extract parent field of %s", issue.Key)
	} else if found && parent.Key != "" {
		if data.Epic, err = b.loadEpic(ctx, parent.Key); err != nil {
			return nil, err
		}
	}

	return data, nil
}

type jiraUser struct {
	DisplayName string            `json:"displayName"`
	AvatarURLs  map[string]string `json:"avatarUrls"`
}

// avatars collects the people in the configured avatar fields. Each field may hold a single
// user or a list of them.
func (b *Board) avatars(issue *jira.Issue) ([]Avatar, error) {
	seen := map[Avatar]bool{}
	for _, field := range b.config.CardAvatars {
		raw, ok := issue.Fields[field]
		if !ok || string(raw) == "null" {
			continue
		}

		var users []jiraUser
		if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
			if _, err := issue.DecodeField(field, &users); err != nil {
				return nil, errors.Wrapf(err, "Could not extract avatars in %s of %s", field, issue.Key)
			}
		} else {
			var user jiraUser
			if _, err := issue.DecodeField(field, &user); err != nil {
				return nil, errors.Wrapf(err, "Could not extract avatar in %s of %s", field, issue.Key)
			}
			users = append(users, user)
		}

		for _, user := range users {
			seen[Avatar{Name: user.DisplayName, Image: user.AvatarURLs["32x32"]}] = true
		}
	}

	avatars := make([]Avatar, 0, len(seen))
	for avatar := range seen {
		avatars = append(avatars, avatar)
	}
	sort.Slice(avatars, func(i, j int) bool {
		if avatars[i].Name != avatars[j].Name {
			return avatars[i].Name < avatars[j].Name
		}
		return avatars[i].Image < avatars[j].Image
	})
	return avatars, nil
}

func (b *Board) flagged(issue *jira.Issue) bool {
	if b.config.Flag == nil {
		return false
	}
	var value interface{}
	if found, err := issue.DecodeField(*b.config.Flag, &value); err != nil || !found {
		return false
	}
	if list, ok := value.([]interface{}); ok {
		return len(list) > 0
	}
	return true
}

func (b *Board) loadEpic(ctx context.Context, key string) (*Epic, error) {
	issue, err := b.api.Epic(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to load epic %s", key)
	}

	shortName, ok := issue.StringField(b.config.EpicShortName)
	if !ok {
		return nil, errors.Errorf("Could not extract short name for epic issue %s", key)
	}

	epic := &Epic{Key: key, ShortName: shortName}
	if b.config.EpicColor != nil {
		if name, ok := issue.StringField(*b.config.EpicColor); ok {
			if color, ok := TranslateColor(name); ok {
				epic.Color = &color
			}
		}
	}
	return epic, nil
}

func logger(code string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"category": boardLogCategory,
		"code":     code,
	})
}
