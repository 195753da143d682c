// Package parse extracts structured listing fields from rendered HTML. The
// selectors and attribute patterns here track the site's Angular build output
// and are expected to break on any site redesign; failures surface as
// structure-mismatch errors so the caller can retry or skip.
package parse

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"hdbscout/models"
)

// Angular stamps rendered elements with a build-scoped attribute like
// _ngcontent-abc-c7; the c7 component holds the listing header.
var ngHeaderAttrRe = regexp.MustCompile(`^_ngcontent-\w{3}-c7`)

var (
	postalCodeRe     = regexp.MustCompile(`Singapore\s+(\d{6})`)
	remainingLeaseRe = regexp.MustCompile(`(?i)(\d+)\s+years(\s+(\d+)\s+months)?`)
	lastUpdatedRe    = regexp.MustCompile(`(?i)Last\s+updated:\s*(\d+)\s+([a-zA-Z]+)\s+(\d+)`)
)

func structErrf(format string, args ...any) error {
	return models.NewScrapeError(models.ErrCodeStructure, fmt.Sprintf(format, args...), nil)
}

// ParseListing parses the rendered HTML of one listing page.
func ParseListing(rawHTML string) (models.HeaderInfo, models.DetailsInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return models.HeaderInfo{}, models.DetailsInfo{}, structErrf("unparseable HTML: %v", err)
	}

	header, err := parseHeader(doc)
	if err != nil {
		return models.HeaderInfo{}, models.DetailsInfo{}, err
	}
	details, err := parseDetails(doc)
	if err != nil {
		return models.HeaderInfo{}, models.DetailsInfo{}, err
	}
	return header, details, nil
}

// parseHeader pulls address, flat type, area and price out of the banner.
func parseHeader(doc *goquery.Document) (models.HeaderInfo, error) {
	address, err := findSimpleText(doc, "h3", "address")
	if err != nil {
		return models.HeaderInfo{}, err
	}
	subAddress, err := findSimpleText(doc, "h5", "sub-address")
	if err != nil {
		return models.HeaderInfo{}, err
	}
	subtitle, err := findSimpleText(doc, "p", "subtitle")
	if err != nil {
		return models.HeaderInfo{}, err
	}
	price, err := findSimpleText(doc, "h2", "price")
	if err != nil {
		return models.HeaderInfo{}, err
	}

	if len(address) != 1 {
		return models.HeaderInfo{}, structErrf("expected 1 address text, got %d", len(address))
	}
	if len(subAddress) != 1 {
		return models.HeaderInfo{}, structErrf("expected 1 sub-address text, got %d", len(subAddress))
	}
	if len(subtitle) != 2 || !strings.HasSuffix(strings.TrimSpace(subtitle[1]), "sqm") {
		return models.HeaderInfo{}, structErrf("unexpected subtitle texts: %q", subtitle)
	}
	if len(price) != 1 || !strings.HasPrefix(strings.TrimSpace(price[0]), "$") {
		return models.HeaderInfo{}, structErrf("unexpected price texts: %q", price)
	}

	areaText := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(subtitle[1]), "sqm"))
	area, err := strconv.ParseFloat(areaText, 64)
	if err != nil {
		return models.HeaderInfo{}, structErrf("unparseable area %q", areaText)
	}

	priceText := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(price[0]), "$"))
	priceVal, err := strconv.ParseFloat(strings.ReplaceAll(priceText, ",", ""), 64)
	if err != nil {
		return models.HeaderInfo{}, structErrf("unparseable price %q", priceText)
	}

	sub := strings.TrimSpace(subAddress[0])
	return models.HeaderInfo{
		Address:    strings.TrimSpace(address[0]),
		SubAddress: sub,
		PostalCode: parsePostalCode(sub),
		FlatType:   strings.TrimSpace(subtitle[0]),
		AreaSqm:    area,
		PriceSGD:   priceVal,
	}, nil
}

// findSimpleText returns the direct text contents of the first element of
// tag whose attribute keys match the Angular header component stamp.
func findSimpleText(doc *goquery.Document, tag, what string) ([]string, error) {
	var found []string
	matched := false
	doc.Find(tag).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, attr := range sel.Nodes[0].Attr {
			if ngHeaderAttrRe.MatchString(attr.Key) {
				found = directTextContents(sel.Nodes[0])
				matched = true
				return false
			}
		}
		return true
	})
	if !matched {
		return nil, structErrf("no matching <%s> element for %s", tag, what)
	}
	return found, nil
}

// directTextContents collects the immediate text-node children of n,
// skipping nested elements.
func directTextContents(n *html.Node) []string {
	var texts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			texts = append(texts, c.Data)
		}
	}
	return texts
}

func parsePostalCode(subAddress string) string {
	if m := postalCodeRe.FindStringSubmatch(subAddress); m != nil {
		return m[1]
	}
	slog.Error("could not parse postal code from sub-address", "subAddress", subAddress)
	return ""
}

type singleDetail struct {
	key string
	val string
}

// parseDetails walks the expanded details section (#content): the labelled
// key/value cells, the free-form seller description, and the last-updated
// footer.
func parseDetails(doc *goquery.Document) (models.DetailsInfo, error) {
	content := doc.Find("#content")
	if content.Length() == 0 {
		return models.DetailsInfo{}, structErrf("no #content element")
	}

	var details []singleDetail
	var detailErr error
	content.Find(".col-6").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		d, err := parseSingleDetail(sel)
		if err != nil {
			detailErr = err
			return false
		}
		details = append(details, d)
		return true
	})
	if detailErr != nil {
		return models.DetailsInfo{}, detailErr
	}

	description, err := parseDescription(content)
	if err != nil {
		return models.DetailsInfo{}, err
	}
	lastUpdated, err := parseLastUpdated(content)
	if err != nil {
		return models.DetailsInfo{}, err
	}

	numBedrooms, err := detailInt(details, "Number of bedrooms")
	if err != nil {
		return models.DetailsInfo{}, err
	}
	numBathrooms, err := detailInt(details, "Number of bathrooms")
	if err != nil {
		return models.DetailsInfo{}, err
	}

	remainingLease := findFromDetails(details, "Remaining lease")
	lastUpdatedDate, err := parseLastUpdatedDate(lastUpdated)
	if err != nil {
		return models.DetailsInfo{}, err
	}

	return models.DetailsInfo{
		Town:                findFromDetails(details, "Town"),
		StoreyRange:         findFromDetails(details, "Storey range"),
		RemainingLease:      remainingLease,
		RemainingLeaseYears: parseRemainingLeaseYears(remainingLease),
		NumBedrooms:         numBedrooms,
		NumBathrooms:        numBathrooms,
		Balcony:             findFromDetails(details, "Balcony"),
		Contra:              findFromDetails(details, "Contra"),
		ExtensionOfStay:     findFromDetails(details, "Extension of stay"),
		Upgrading:           findFromDetails(details, "Upgrading"),
		EthnicEligibility:   findFromDetails(details, "Ethnic eligibility"),
		SPREligibility:      findFromDetails(details, "SPR eligibility"),
		Description:         description,
		LastUpdated:         lastUpdated,
		LastUpdatedDate:     lastUpdatedDate,
	}, nil
}

// parseSingleDetail reads one labelled cell: the <span> holds the key, the
// last text of each <p> holds the value(s).
func parseSingleDetail(sel *goquery.Selection) (singleDetail, error) {
	spans := sel.Find("span")
	if spans.Length() != 1 {
		return singleDetail{}, structErrf("detail cell has %d spans, want 1", spans.Length())
	}
	key := strings.TrimSpace(spans.First().Text())

	paragraphs := sel.Find("p")
	if paragraphs.Length() == 0 {
		return singleDetail{}, structErrf("detail cell %q has no value paragraphs", key)
	}
	var vals []string
	paragraphs.Each(func(_ int, p *goquery.Selection) {
		vals = append(vals, strings.TrimSpace(lastContentText(p.Nodes[0])))
	})
	return singleDetail{key: key, val: strings.Join(vals, ", ")}, nil
}

// lastContentText returns the text of n's last child node.
func lastContentText(n *html.Node) string {
	last := n.LastChild
	if last == nil {
		return ""
	}
	if last.Type == html.TextNode {
		return last.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			walk(gc)
		}
	}
	walk(last)
	return sb.String()
}

func parseDescription(content *goquery.Selection) (string, error) {
	wrappers := content.Find(".col-10")
	if wrappers.Length() == 0 {
		return "", structErrf("no description wrapper elements")
	}
	inserted := wrappers.Find(".ng-tns-c8-0.ng-star-inserted")
	if inserted.Length() == 0 {
		return "", structErrf("no description text elements")
	}
	var lines []string
	inserted.Each(func(_ int, sel *goquery.Selection) {
		lines = append(lines, directTextContents(sel.Nodes[0])...)
	})
	return strings.Join(lines, "\n"), nil
}

func parseLastUpdated(content *goquery.Selection) (string, error) {
	els := content.Find(".description-last-updated")
	if els.Length() == 0 {
		return "", structErrf("no last-updated elements")
	}
	var parts []string
	els.Each(func(_ int, sel *goquery.Selection) {
		parts = append(parts, directTextContents(sel.Nodes[0])...)
	})
	return strings.Join(parts, ", "), nil
}

// findFromDetails matches keys case-insensitively. A missing key is logged
// but not fatal; the column stays empty.
func findFromDetails(details []singleDetail, key string) string {
	for _, d := range details {
		if strings.EqualFold(d.key, key) {
			return strings.TrimSpace(d.val)
		}
	}
	slog.Error("could not find key in details", "key", key)
	return ""
}

func detailInt(details []singleDetail, key string) (int, error) {
	val := findFromDetails(details, key)
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, structErrf("unparseable %s value %q", key, val)
	}
	return n, nil
}

// parseRemainingLeaseYears converts "61 years 4 months" to fractional years.
func parseRemainingLeaseYears(remainingLease string) *float64 {
	m := remainingLeaseRe.FindStringSubmatch(remainingLease)
	if m == nil {
		slog.Error("could not parse remaining lease", "remainingLease", remainingLease)
		return nil
	}
	years, _ := strconv.Atoi(m[1])
	months := 0
	if m[3] != "" {
		months, _ = strconv.Atoi(m[3])
	}
	v := float64(years) + float64(months)/12
	return &v
}

// parseLastUpdatedDate picks the latest of the "Last updated: 2 March 2024"
// dates in the footer and normalizes it to YYYY-MM-DD.
func parseLastUpdatedDate(lastUpdated string) (string, error) {
	matches := lastUpdatedRe.FindAllStringSubmatch(lastUpdated, -1)
	if len(matches) == 0 {
		return "", structErrf("no last-updated dates in %q", lastUpdated)
	}
	var latest time.Time
	for _, m := range matches {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		month, err := time.Parse("January", m[2])
		if err != nil {
			return "", structErrf("unparseable month %q", m[2])
		}
		d := time.Date(year, month.Month(), day, 0, 0, 0, 0, time.UTC)
		if d.After(latest) {
			latest = d
		}
	}
	return latest.Format("2006-01-02"), nil
}
