package server

import (
	"context"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sitegui/kaiju/board"
	"github.com/sitegui/kaiju/config"
	"github.com/sitegui/kaiju/jira"
	"github.com/sitegui/kaiju/prometheus"
)

const (
	serverLogCategory = "server"

	browserDelay    = time.Second
	shutdownTimeout = 5 * time.Second
)

// IssueAPI is what the server needs from Jira besides the board.
type IssueAPI interface {
	Issue(ctx context.Context, key string) (*jira.Issue, error)
	CreateIssue(ctx context.Context, body interface{}) (*jira.CreatedIssue, error)
	UpdateIssue(ctx context.Context, key string, body interface{}) error
}

type Options struct {
	DevMode bool
	Metrics prometheus.PrometheusClient
}

type Server struct {
	cfg    *config.Config
	board  *board.Board
	api    IssueAPI
	engine *gin.Engine
}

// New builds the web interface of a board.
func New(cfg *config.Config, b *board.Board, api IssueAPI, opts Options) *Server {
	s := &Server{cfg: cfg, board: b, api: api, engine: gin.New()}
	assets := assetSource{devMode: opts.DevMode}

	s.engine.Use(gin.Recovery(), localhostCORS())
	if opts.Metrics != nil {
		s.engine.Use(prometheus.Middleware(opts.Metrics))
		s.engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	s.engine.GET("/", assets.handler(indexHTML))
	s.engine.GET("/index.js", assets.handler(indexJS))
	s.engine.GET("/index.css", assets.handler(indexCSS))
	s.engine.GET("/favicon.png", assets.handler(favicon))

	routes := s.engine.Group("/api")
	routes.GET("/board", s.getBoard)
	routes.GET("/issue/:key", s.getIssue)
	routes.GET("/new-issue-code", s.getNewIssueCode)
	routes.GET("/edit-issue-code/:key", s.getEditIssueCode)
	routes.POST("/issue", s.postIssue)
	routes.POST("/issue/:key", s.postIssueUpdate)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Address is where the server listens, from server_ip and server_port.
func Address(cfg *config.Config) string {
	return net.JoinHostPort(cfg.ServerIP, strconv.Itoa(cfg.ServerPort))
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context, openBrowser bool) error {
	httpServer := &http.Server{Addr: Address(s.cfg), Handler: s.engine}
	url := "http://localhost:" + strconv.Itoa(s.cfg.ServerPort)
	logger("start").WithField("url", url).Info("Will start local server")

	if openBrowser {
		go func() {
			select {
			case <-time.After(browserDelay):
			case <-ctx.Done():
				return
			}
			if err := OpenBrowser(url); err != nil {
				logger("browser").WithError(err).Warn("Failed to open browser")
			} else {
				logger("browser").Info("Opened default browser")
			}
		}()
	}

	errs := make(chan error, 1)
	go func() {
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return errors.Wrapf(err, "Local server stopped")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger("stop").Info("Will stop local server")
	return errors.WithStack(httpServer.Shutdown(shutdownCtx))
}

func OpenBrowser(url string) error {
	if err := exec.Command("xdg-open", url).Run(); err != nil {
		return errors.Wrapf(err, "Failed to open %s in browser", url)
	}
	return nil
}

// localhostCORS lets pages served from any local port read the API.
func localhostCORS() gin.HandlerFunc {
	return func(g *gin.Context) {
		origin := g.GetHeader("Origin")
		if strings.HasPrefix(origin, "http://localhost:") {
			header := g.Writer.Header()
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Methods", http.MethodGet)
			header.Add("Vary", "Origin")
			if g.Request.Method == http.MethodOptions {
				g.AbortWithStatus(http.StatusNoContent)
				return
			}
		}
		g.Next()
	}
}

// abortWithError answers 500 with the full error chain, stack included.
func abortWithError(g *gin.Context, err error) {
	logger("api_error").WithError(err).WithField("path", g.Request.URL.Path).Error("Request failed")
	g.String(http.StatusInternalServerError, "%+v", err)
	g.Abort()
}

func logger(code string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"category": serverLogCategory,
		"code":     code,
	})
}
