package models

import "github.com/google/uuid"

// Tab is a saved link inside a collection.
type Tab struct {
	Syncable
	CollectionID string `json:"collectionId"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	FaviconURL   string `json:"faviconUrl,omitempty"`
}

// NewTab creates a tab under collectionID.
func NewTab(clock Clock, collectionID, title, url string, order int) *Tab {
	t := &Tab{CollectionID: collectionID, Title: title, URL: url}
	t.init(uuid.NewString(), clock.Millis())
	t.Order = order
	return t
}

// TabPatch lists the editable tab fields; nil means unchanged.
type TabPatch struct {
	Title      *string
	URL        *string
	FaviconURL *string
}

// Update applies the patch and touches the record.
func (t *Tab) Update(now int64, p TabPatch) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.URL != nil {
		t.URL = *p.URL
	}
	if p.FaviconURL != nil {
		t.FaviconURL = *p.FaviconURL
	}
	t.Touch(now)
}
