package prowlarr

import (
	"encoding/json"
	"encoding/xml"
)

// TorznabFeed is the root RSS element of a Torznab search response.
type TorznabFeed struct {
	XMLName xml.Name       `xml:"rss"`
	Channel TorznabChannel `xml:"channel"`
}

type TorznabChannel struct {
	Title string        `xml:"title"`
	Items []TorznabItem `xml:"item"`
}

// TorznabItem is a single release in a Torznab response, carrying its
// torznab:attr extended attributes alongside the plain RSS fields.
type TorznabItem struct {
	Title      string             `xml:"title"`
	GUID       string             `xml:"guid"`
	Link       string             `xml:"link"`
	PubDate    string             `xml:"pubDate"`
	Size       int64              `xml:"size"`
	Enclosure  TorznabEnclosure   `xml:"enclosure"`
	Attributes []TorznabAttribute `xml:"attr"`
}

type TorznabEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
}

type TorznabAttribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// GetAttribute looks up a torznab:attr by exact, case-sensitive name.
// Indexers disagree on which of several synonymous names they emit, so
// callers normally go through GetIntAttribute rather than calling this
// directly for numeric fields.
func (item *TorznabItem) GetAttribute(name string) string {
	for _, attr := range item.Attributes {
		if attr.Name == name {
			return attr.Value
		}
	}
	return ""
}

// GetIntAttribute tries each of the given attribute names in order and
// returns the first one that parses as an integer. This is how the seeder
// count is recovered: indexers emit it as "seeders", "seedCount", or "seeds"
// depending on their Torznab implementation.
func (item *TorznabItem) GetIntAttribute(defaultVal int, names ...string) int {
	for _, name := range names {
		val := item.GetAttribute(name)
		if val == "" {
			continue
		}
		var result int
		if err := json.Unmarshal([]byte(val), &result); err == nil {
			return result
		}
	}
	return defaultVal
}

// Indexer is one indexer configured upstream, trimmed to the fields
// ListIndexers and CountEnabledIndexers report.
type Indexer struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Enable   bool   `json:"enable"`
}

type prowlarrIndexerResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Enable   bool   `json:"enable"`
}
