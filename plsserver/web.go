package main

import (
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/einspunktnull/sickpls"
)

var tmpl = template.Must(template.New("").Parse(`<html>
  <head>
    <title>PLS Scan Log List</title>
  </head>

  <body>
    <h1>PLS Scan Logs</h1>

    <table>
      <tr>
        <thead>
          <th>Logfile</th>
          <th>Size</th>
          <th>Date</th>
        </thead>

        <tbody>
          {{range .}}
            <tr>
              <td>
                <a href="/logs/{{.Name}}">{{.Name}}</a>
                <a href="/logs/{{.Name}}?fmt=csv">(csv)</a>
                <a href="/logs/{{.Name}}?fmt=csvlong">(csvlong)</a>
              </td>
              <td>{{.Size}}</td>
              <td>{{.ModTime}}</td>
            </tr>
          {{end}}
        </tbody>
      </tr>
    </table>
  </body>
</html>`))

type logHandler struct{}

func showLog(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Path)
	log.Printf("Fetching log %v", name)

	fn := path.Join(*logpath, name)

	if !strings.HasPrefix(r.FormValue("fmt"), "csv") {
		f, err := os.Open(fn)
		if err != nil {
			http.Error(w, err.Error(), 404)
			return
		}
		defer f.Close()

		g := newGzippingWriter(w, r)
		defer g.Close()
		io.Copy(g, f)
		return
	}

	ls, err := sickpls.NewLogReader(fn)
	if err != nil {
		http.Error(w, err.Error(), 404)
		return
	}

	var lr io.ReadCloser
	switch r.FormValue("fmt") {
	case "csvlong":
		lr = sickpls.NewLongCSVReader(ls)
	default:
		lr = sickpls.NewWideCSVReader(ls)
	}
	defer lr.Close()
	defer ls.Close()

	w.Header().Set("Content-type", "text/csv")
	g := newGzippingWriter(w, r)
	defer g.Close()
	io.Copy(g, lr)
}

type dsfio []os.FileInfo

func (d dsfio) Len() int           { return len(d) }
func (d dsfio) Less(i, j int) bool { return d[i].Name() > d[j].Name() }
func (d dsfio) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }

type jfio struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
}

func (logHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "" {
		showLog(w, r)
		return
	}

	f, err := os.Open(*logpath)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer f.Close()

	o, err := f.Readdir(0)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	sort.Sort(dsfio(o))

	if r.FormValue("format") == "json" {
		oe := []jfio{}
		for _, e := range o {
			oe = append(oe, jfio{e.Name(), e.Size(), e.ModTime()})
		}
		cur := currentLogName()
		if cur != "" {
			cur = path.Base(cur)
		}
		serveJSON(w, r, map[string]interface{}{
			"current": cur,
			"entries": oe,
		})
		return
	}

	w.Header().Set("Content-type", "text/html")

	g := newGzippingWriter(w, r)
	defer g.Close()

	if err := tmpl.Execute(g, o); err != nil {
		log.Printf("Error rendering template: %v", err)
	}
}
