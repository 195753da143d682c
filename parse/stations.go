package parse

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	mapset "github.com/deckarep/golang-set/v2"
)

// Wikipedia links operational stations to pages named "..._MRT_station" or
// "..._MRT/LRT_station"; future stations are italicized and excluded.
var stationHrefRe = regexp.MustCompile(`(?i)(_MRT_station|_MRT/LRT_station)$`)

// StationNames extracts the operational MRT station names from the Wikipedia
// "List of Singapore MRT stations" page. Names are deduplicated and sorted
// so repeated runs produce the same order.
func StationNames(rawHTML string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, structErrf("unparseable station list HTML: %v", err)
	}

	names := mapset.NewSet[string]()
	doc.Find("table.wikitable.sortable").Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !stationHrefRe.MatchString(href) {
			return
		}
		if link.Find("i").Length() > 0 {
			return
		}
		if !strings.HasPrefix(href, "/wiki/") {
			return
		}
		name := strings.ReplaceAll(strings.TrimPrefix(href, "/wiki/"), "_", " ")
		names.Add(name)
	})

	if names.Cardinality() == 0 {
		return nil, structErrf("no station links found")
	}

	sorted := names.ToSlice()
	sort.Strings(sorted)
	return sorted, nil
}
