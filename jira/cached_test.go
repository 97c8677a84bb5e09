package jira

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/sitegui/kaiju/cache"
	"github.com/sitegui/kaiju/config"
)

type fakeAPI struct {
	calls   int64
	delay   time.Duration
	failing bool
}

var errFake = errors.New("jira is down")

func (f *fakeAPI) call() error {
	atomic.AddInt64(&f.calls, 1)
	time.Sleep(f.delay)
	if f.failing {
		return errFake
	}
	return nil
}

func (f *fakeAPI) Calls() int {
	return int(atomic.LoadInt64(&f.calls))
}

func (f *fakeAPI) BoardConfiguration(ctx context.Context, boardID string) (*BoardConfiguration, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return &BoardConfiguration{Name: "Board " + boardID}, nil
}

func (f *fakeAPI) BoardIssues(ctx context.Context, boardID, fields, jql string) (*BoardIssues, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return &BoardIssues{Issues: []Issue{{Key: jql}}}, nil
}

func (f *fakeAPI) Issue(ctx context.Context, key string) (*Issue, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return &Issue{Key: key}, nil
}

func (f *fakeAPI) DevelopmentInfo(ctx context.Context, issueID string) (*DevelopmentInfo, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return &DevelopmentInfo{}, nil
}

func (f *fakeAPI) CreateIssue(ctx context.Context, body interface{}) (*CreatedIssue, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return &CreatedIssue{Key: "KJ-9"}, nil
}

func (f *fakeAPI) UpdateIssue(ctx context.Context, key string, body interface{}) error {
	return f.call()
}

var testTTL = config.CacheConfig{
	TTLBoardConfigurationSeconds: 60,
	TTLBoardIssuesSeconds:        60,
	TTLIssueSeconds:              60,
	TTLEpicSeconds:               60,
	TTLDevelopmentInfoSeconds:    60,
}

func TestCached(t *testing.T) {
	ctx := context.Background()

	Convey("Cached", t, func() {
		api := &fakeAPI{}
		subject := NewCached(api, cache.NewKeyed(), testTTL)

		Convey("It should reach Jira once for concurrent identical requests", func() {
			api.delay = 20 * time.Millisecond

			var wg sync.WaitGroup
			results := make([]*BoardIssues, 10)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], _ = subject.BoardIssues(ctx, "1", "status", "status in (3)")
				}(i)
			}
			wg.Wait()

			So(api.Calls(), ShouldEqual, 1)
			for _, res := range results {
				So(res, ShouldNotBeNil)
				So(res.Issues[0].Key, ShouldEqual, "status in (3)")
			}
		})

		Convey("It should key board issues by every parameter", func() {
			_, err := subject.BoardIssues(ctx, "1", "status", "status in (3)")
			So(err, ShouldBeNil)
			_, err = subject.BoardIssues(ctx, "1", "status", "status in (4)")
			So(err, ShouldBeNil)
			_, err = subject.BoardIssues(ctx, "1", "status", "status in (3)")
			So(err, ShouldBeNil)

			So(api.Calls(), ShouldEqual, 2)
		})

		Convey("It should share entries between issues and epics", func() {
			issue, err := subject.Issue(ctx, "KJ-1")
			So(err, ShouldBeNil)
			epic, err := subject.Epic(ctx, "KJ-1")
			So(err, ShouldBeNil)

			So(api.Calls(), ShouldEqual, 1)
			So(epic, ShouldResemble, issue)
		})

		Convey("It should cache failures", func() {
			api.failing = true
			_, err := subject.DevelopmentInfo(ctx, "100")
			So(errors.Cause(err), ShouldEqual, errFake)
			_, err = subject.DevelopmentInfo(ctx, "100")
			So(errors.Cause(err), ShouldEqual, errFake)

			So(api.Calls(), ShouldEqual, 1)
		})

		Convey("It should clear the cache after creating an issue", func() {
			_, err := subject.BoardConfiguration(ctx, "1")
			So(err, ShouldBeNil)

			created, err := subject.CreateIssue(ctx, map[string]interface{}{})
			So(err, ShouldBeNil)
			So(created.Key, ShouldEqual, "KJ-9")

			_, err = subject.BoardConfiguration(ctx, "1")
			So(err, ShouldBeNil)
			So(api.Calls(), ShouldEqual, 3)
		})

		Convey("It should keep the cache when an update fails", func() {
			_, err := subject.Issue(ctx, "KJ-1")
			So(err, ShouldBeNil)

			api.failing = true
			So(subject.UpdateIssue(ctx, "KJ-1", nil), ShouldNotBeNil)

			_, err = subject.Issue(ctx, "KJ-1")
			So(err, ShouldBeNil)
			So(api.Calls(), ShouldEqual, 2)
		})
	})
}
