package server

import (
	"io/ioutil"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sitegui/kaiju/issuecode"
)

func (s *Server) getBoard(g *gin.Context) {
	start := time.Now()
	data, err := s.board.Load(g.Request.Context())
	if err != nil {
		abortWithError(g, err)
		return
	}
	logger("board").WithField("duration", time.Since(start).String()).Info("Got board data")
	g.JSON(http.StatusOK, data)
}

func (s *Server) getIssue(g *gin.Context) {
	data, err := s.board.Issue(g.Request.Context(), g.Param("key"))
	if err != nil {
		abortWithError(g, err)
		return
	}
	g.JSON(http.StatusOK, data)
}

func (s *Server) getNewIssueCode(g *gin.Context) {
	g.String(http.StatusOK, issuecode.NewIssue(s.cfg))
}

func (s *Server) getEditIssueCode(g *gin.Context) {
	key := g.Param("key")
	issue, err := s.api.Issue(g.Request.Context(), key)
	if err != nil {
		abortWithError(g, err)
		return
	}
	fields, err := issue.FieldsObject()
	if err != nil {
		abortWithError(g, errors.Wrapf(err, "Invalid fields in issue %s", key))
		return
	}
	code, err := issuecode.EditIssue(s.cfg, fields)
	if err != nil {
		abortWithError(g, err)
		return
	}
	g.String(http.StatusOK, code)
}

func (s *Server) postIssue(g *gin.Context) {
	body, ok := s.readIssueBody(g)
	if !ok {
		return
	}
	created, err := s.api.CreateIssue(g.Request.Context(), body)
	if err != nil {
		abortWithError(g, err)
		return
	}
	logger("create").WithField("key", created.Key).Info("Created issue")
	g.JSON(http.StatusOK, created)
}

func (s *Server) postIssueUpdate(g *gin.Context) {
	key := g.Param("key")
	body, ok := s.readIssueBody(g)
	if !ok {
		return
	}
	if err := s.api.UpdateIssue(g.Request.Context(), key, body); err != nil {
		abortWithError(g, err)
		return
	}
	logger("update").WithField("key", key).Info("Updated issue")
	g.Status(http.StatusNoContent)
}

// readIssueBody turns the issue markdown in the request into a Jira body.
func (s *Server) readIssueBody(g *gin.Context) (map[string]interface{}, bool) {
	source, err := ioutil.ReadAll(g.Request.Body)
	if err != nil {
		abortWithError(g, errors.Wrapf(err, "Could not read request body"))
		return nil, false
	}
	issue, err := issuecode.ParseMarkdown(string(source))
	if err != nil {
		abortWithError(g, err)
		return nil, false
	}
	body, err := issuecode.PrepareAPIBody(s.cfg, issue)
	if err != nil {
		abortWithError(g, err)
		return nil, false
	}
	return body, true
}
