package prometheus

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records the requests served by a gin engine. Requests are labelled by route
// pattern rather than raw path, so /api/issue/:key stays a single series.
func Middleware(p PrometheusClient) gin.HandlerFunc {
	return func(g *gin.Context) {
		init := time.Now()
		reqData := getRequestInfo(g)

		p.OpenRequest(reqData)
		g.Next()
		p.ObserveDuration(reqData, init)
		p.CloseRequest(reqData, strconv.Itoa(g.Writer.Status()))
	}
}

func getRequestInfo(g *gin.Context) RequestData {
	path := g.FullPath()
	if path == "" {
		path = "unmatched"
	}
	return RequestData{
		Method: g.Request.Method,
		Path:   path,
	}
}
