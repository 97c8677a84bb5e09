package server

import (
	"embed"
	"io/ioutil"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

//go:embed web
var embedded embed.FS

// devAssetsDir is where the web resources live in a checkout, relative to its root.
const devAssetsDir = "server/web"

type asset struct {
	file        string
	contentType string
}

var (
	indexHTML = asset{"index.html", "text/html"}
	indexJS   = asset{"index.js", "text/javascript"}
	indexCSS  = asset{"index.css", "text/css"}
	favicon   = asset{"favicon.png", "image/png"}
)

// assetSource reads web resources from the binary, or from disk in dev mode so that they can
// be edited without a rebuild.
type assetSource struct {
	devMode bool
}

func (s assetSource) read(a asset) ([]byte, error) {
	if s.devMode {
		data, err := ioutil.ReadFile(filepath.Join(devAssetsDir, a.file))
		return data, errors.Wrapf(err, "Could not read %s from disk", a.file)
	}
	data, err := embedded.ReadFile("web/" + a.file)
	return data, errors.Wrapf(err, "Could not read embedded %s", a.file)
}

func (s assetSource) handler(a asset) gin.HandlerFunc {
	return func(g *gin.Context) {
		data, err := s.read(a)
		if err != nil {
			abortWithError(g, err)
			return
		}
		g.Data(http.StatusOK, a.contentType, data)
	}
}
