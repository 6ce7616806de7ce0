// Command fetchlog mirrors a plsserver's scan-log archive into a
// local directory, skipping files that are already complete and the
// log the server is still writing.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/cespare/wait"
	"github.com/dustin/httputil"
)

var (
	concurrency = flag.Int("concurrency", 4, "maximum concurrent fetches")
	httpTimeout = flag.Duration("timeout", time.Minute, "HTTP timeout")
)

// archiveEntry is one row of plsserver's /logs/?format=json listing.
type archiveEntry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
}

// listArchive fetches the server's scan-log listing. The entry named
// as current is still growing and is left out.
func listArchive(baseurl string) (map[string]int64, error) {
	u, err := url.Parse(baseurl + "/logs/?format=json")
	if err != nil {
		return nil, err
	}

	res, err := http.Get(u.String())
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		return nil, httputil.HTTPError(res)
	}

	listing := struct {
		Current string         `json:"current"`
		Entries []archiveEntry `json:"entries"`
	}{}
	if err := json.NewDecoder(res.Body).Decode(&listing); err != nil {
		return nil, err
	}

	sizes := map[string]int64{}
	for _, e := range listing.Entries {
		if e.Name == listing.Current {
			continue
		}
		sizes[e.Name] = e.Size
	}
	return sizes, nil
}

// listMirrored sizes up what the destination directory already holds.
func listMirrored(dir string) (map[string]int64, error) {
	d, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	infos, err := d.Readdir(-1)
	if err != nil {
		return nil, err
	}

	sizes := map[string]int64{}
	for _, fi := range infos {
		sizes[fi.Name()] = fi.Size()
	}
	return sizes, nil
}

func fetchOne(client *http.Client, baseurl, dest, name string) error {
	u, err := url.Parse(baseurl + "/logs/" + name)
	if err != nil {
		return err
	}

	res, err := client.Get(u.String())
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		return httputil.HTTPError(res)
	}

	f, err := os.Create(path.Join(dest, name))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, res.Body)
	return err
}

// mirror pulls every archived log whose size differs from the local
// copy, a few at a time.
func mirror(dest, baseurl string, have, want map[string]int64) error {
	g := wait.Group{}
	sem := make(chan bool, *concurrency)

	client := &http.Client{
		Transport: &http.Transport{
			DisableCompression: true,
		},
		Timeout: *httpTimeout,
	}

	for name, size := range want {
		if have[name] == size {
			continue
		}

		name := name
		size := size
		g.Go(func(<-chan struct{}) error {
			sem <- true
			defer func() { <-sem }()

			log.Printf("Fetching %v (%v of %v bytes here)", name, have[name], size)
			if err := fetchOne(client, baseurl, dest, name); err != nil {
				log.Printf("Error fetching %v: %v", name, err)
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

func main() {
	flag.Parse()
	if flag.NArg() < 2 {
		log.Fatalf("Usage: %v baseurl destdir", os.Args[0])
	}

	http.DefaultClient.Timeout = *httpTimeout
	httputil.InitHTTPTracker(false)

	baseurl := flag.Arg(0)
	dest := flag.Arg(1)

	var have, want map[string]int64

	g := wait.Group{}
	g.Go(func(<-chan struct{}) (err error) {
		want, err = listArchive(baseurl)
		return err
	})
	g.Go(func(<-chan struct{}) (err error) {
		have, err = listMirrored(dest)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("Error listing scan logs: %v", err)
	}

	if err := mirror(dest, baseurl, have, want); err != nil {
		log.Fatalf("Error mirroring scan logs: %v", err)
	}
}
