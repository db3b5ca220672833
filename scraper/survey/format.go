// Package survey classifies fetched evaluation report pages and extracts
// normalized course records from them.
package survey

import (
	"github.com/PuerkitoBio/goquery"
)

// Format tags the layout generation of a report page.
type Format int

const (
	FormatUnrecognized Format = iota
	FormatLegacy
	FormatCurrent
)

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatCurrent:
		return "current"
	default:
		return "unrecognized"
	}
}

// Classify inspects the first element inside the report's content frame.
// Legacy reports open with a <center> block; current reports open with the
// <a id="top" name="top"> anchor. Anything else is unrecognized and must
// not be extracted from.
func Classify(doc *goquery.Document) Format {
	frame := doc.Find("div#contentsframe").First()
	if frame.Length() == 0 {
		return FormatUnrecognized
	}

	first := frame.Children().First()
	if first.Length() == 0 {
		return FormatUnrecognized
	}

	switch goquery.NodeName(first) {
	case "center":
		return FormatLegacy
	case "a":
		if first.AttrOr("id", "") == "top" && first.AttrOr("name", "") == "top" {
			return FormatCurrent
		}
	}
	return FormatUnrecognized
}
