package torznab

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleRSS = `<?xml version="1.0"?>
<rss><channel>
<item>
  <title>Pink Floyd - The Dark Side of the Moon (1973) [FLAC]</title>
  <link>https://example.test/download/1</link>
  <enclosure url="https://example.test/download/1.torrent" length="123456789"/>
  <attr name="seeders" value="42"/>
  <attr name="leechers" value="3"/>
  <attr name="infohash" value="AABBCCDDEEFF00112233445566778899AABBCCDD"/>
</item>
<item>
  <title></title>
  <link>https://example.test/download/2</link>
</item>
</channel></rss>`

func TestProvider_SearchParsesTorznabXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "t=search") {
			t.Errorf("expected t=search in query, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	p := NewProvider(IndexerConfig{Name: "test-indexer", Endpoint: server.URL})
	candidates, err := p.Search(t.Context(), "dark side of the moon", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate (empty-title item dropped), got %d", len(candidates))
	}
	c := candidates[0]
	if c.InfoHash != "aabbccddeeff00112233445566778899aabbccdd" {
		t.Fatalf("unexpected infohash: %q", c.InfoHash)
	}
	if c.Seeders != 42 || c.Leechers != 3 {
		t.Fatalf("unexpected seeders/leechers: %d/%d", c.Seeders, c.Leechers)
	}
	if len(c.Sources) != 1 || c.Sources[0].Indexer != "test-indexer" {
		t.Fatalf("expected one source tagged with the indexer name, got %+v", c.Sources)
	}
}

func TestProvider_SearchSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewProvider(IndexerConfig{Name: "test-indexer", Endpoint: server.URL})
	p.retryCfg.MaxAttempts = 1
	if _, err := p.Search(t.Context(), "query", 10); err == nil {
		t.Fatal("expected an error from a 500 response")
	}
}
