package prismic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Response is one page of search results.
type Response struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         string     `json:"next_page"`
	PrevPage         string     `json:"prev_page"`
	Results          []Document `json:"results"`
}

// Document is a CMS document. Data holds the custom type's fields and is
// decoded by the caller.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	Type                 string          `json:"type"`
	Tags                 []string        `json:"tags,omitempty"`
	FirstPublicationDate *Time           `json:"first_publication_date"`
	LastPublicationDate  *Time           `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

// DecodeData unmarshals the document's data into v.
func (d *Document) DecodeData(v any) error {
	if len(d.Data) == 0 || bytes.Equal(d.Data, []byte("null")) {
		return &ParseError{URL: d.Type + "/" + d.UID, Err: fmt.Errorf("document has no data")}
	}
	if err := json.Unmarshal(d.Data, v); err != nil {
		return &ParseError{URL: d.Type + "/" + d.UID, Err: err}
	}
	return nil
}

// Ref is a content release reference from the API root.
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

type apiRoot struct {
	Refs []Ref `json:"refs"`
}

// timeLayouts are the timestamp formats the API has been seen to emit.
var timeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02",
}

// Time is a publication timestamp.
type Time struct {
	time.Time
}

// UnmarshalJSON accepts Prismic's "+0000" offsets as well as RFC 3339.
func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// MarshalJSON writes the API's own format.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(timeLayouts[0]))
}

// Ptr returns the timestamp as a *time.Time, nil when t is nil.
func (t *Time) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
