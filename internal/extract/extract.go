// Package extract parses catalog page markup into product candidates.
// Extraction never fails outright: a missing sub-element degrades to the
// documented sentinel value and the candidate is still produced.
package extract

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricewatch/shopcrawl/internal/scraper"
)

// Markup selectors for the target catalog theme.
const (
	containerSelector = "div.mf-product-details"
	titleSelector     = "h2.woo-loop-product__title"
	priceSelector     = "span.price"
	imageSelector     = "img.mf-product-thumbnail"
)

var priceCleaner = strings.NewReplacer("₹", "", ",", "")

// Extractor implements scraper.Extractor over goquery.
type Extractor struct{}

// New returns a ready Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract locates every product container on the page and returns one
// candidate per container, in document order. An unparseable page or a page
// without containers yields an empty slice.
func (e *Extractor) Extract(page []byte) []scraper.Candidate {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var out []scraper.Candidate
	doc.Find(containerSelector).Each(func(_ int, card *goquery.Selection) {
		out = append(out, extractCandidate(card))
	})
	return out
}

func extractCandidate(card *goquery.Selection) scraper.Candidate {
	title := strings.TrimSpace(card.Find(titleSelector).First().Text())
	if title == "" {
		title = scraper.NoNameFound
	}

	imageURL, _ := card.Find(imageSelector).First().Attr("src")

	return scraper.Candidate{
		Title:    title,
		Price:    extractPrice(card.Find(priceSelector).First()),
		ImageURL: imageURL,
	}
}

// extractPrice applies the precedence rule: the <ins> sub-element (current
// or sale price) wins over the whole price block text; no block at all
// means the 0.0 sentinel.
func extractPrice(block *goquery.Selection) float64 {
	if block.Length() == 0 {
		return 0
	}
	text := block.Text()
	if ins := block.Find("ins").First(); ins.Length() > 0 {
		text = ins.Text()
	}
	return parsePrice(text)
}

// parsePrice strips the currency symbol and thousands separators before the
// numeric parse. Anything that still fails to parse, or a negative value,
// falls back to 0.0.
func parsePrice(text string) float64 {
	cleaned := strings.TrimSpace(priceCleaner.Replace(text))
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
