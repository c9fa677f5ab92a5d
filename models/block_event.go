package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fetch metadata values stored in place of anything a client sent that is
// not a registered token. Raw header values are never persisted.
const (
	HeaderValueAbsent = "absent"
	HeaderValueOther  = "other"
)

var (
	knownSites = map[string]struct{}{"same-origin": {}, "same-site": {}, "cross-site": {}, "none": {}}
	knownModes = map[string]struct{}{
		"navigate": {}, "same-origin": {}, "no-cors": {}, "cors": {}, "websocket": {},
	}
	knownDests = map[string]struct{}{
		"audio": {}, "audioworklet": {}, "document": {}, "embed": {}, "empty": {}, "font": {},
		"frame": {}, "iframe": {}, "image": {}, "manifest": {}, "object": {}, "paintworklet": {},
		"report": {}, "script": {}, "serviceworker": {}, "sharedworker": {}, "style": {},
		"track": {}, "video": {}, "webidentity": {}, "worker": {}, "xslt": {},
	}
)

// BlockEvent records a request the isolation policy rejected (or would have
// rejected, in report-only mode).
type BlockEvent struct {
	ID         uuid.UUID `json:"id" db:"id"`
	RequestID  string    `json:"request_id" db:"request_id"`
	Method     string    `json:"method" db:"method"`
	Path       string    `json:"path" db:"path"`
	Site       string    `json:"site" db:"site"`
	Mode       string    `json:"mode" db:"mode"`
	Dest       string    `json:"dest" db:"dest"`
	RemoteAddr string    `json:"remote_addr" db:"remote_addr"`
	ReportOnly bool      `json:"report_only" db:"report_only"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// TableName returns the table name for the BlockEvent model
func (BlockEvent) TableName() string {
	return "block_events"
}

// NewBlockEvent creates a BlockEvent for method and path
func NewBlockEvent(method, path string) *BlockEvent {
	return &BlockEvent{
		ID:         uuid.New(),
		Method:     method,
		Path:       path,
		Site:       HeaderValueAbsent,
		Mode:       HeaderValueAbsent,
		Dest:       HeaderValueAbsent,
		OccurredAt: time.Now().UTC(),
	}
}

// WithFetchMetadata sets the site, mode and dest, normalizing each to a
// known token.
func (e *BlockEvent) WithFetchMetadata(site, mode, dest string) *BlockEvent {
	e.Site = normalizeToken(site, knownSites)
	e.Mode = normalizeToken(mode, knownModes)
	e.Dest = normalizeToken(dest, knownDests)
	return e
}

// WithRequest sets request metadata
func (e *BlockEvent) WithRequest(requestID, remoteAddr string) *BlockEvent {
	e.RequestID = requestID
	e.RemoteAddr = remoteAddr
	return e
}

// WithReportOnly marks the event as observed but not enforced
func (e *BlockEvent) WithReportOnly(reportOnly bool) *BlockEvent {
	e.ReportOnly = reportOnly
	return e
}

func normalizeToken(v string, known map[string]struct{}) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return HeaderValueAbsent
	}
	if _, ok := known[v]; ok {
		return v
	}
	return HeaderValueOther
}

// BlockStat counts block events grouped by path and site
type BlockStat struct {
	Path  string `json:"path" db:"path"`
	Site  string `json:"site" db:"site"`
	Count int64  `json:"count" db:"count"`
}
