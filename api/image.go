package api

type Image struct {
	Identifier string `json:"identifier"`
	Caption    string `json:"caption"`
	Image      string `json:"image"`
	Version    string `json:"version"`
	CapturedAt string `json:"captured_at"`
	Size       int64  `json:"size"`
	RunID      string `json:"run_id"`
	StoredAt   string `json:"stored_at"`
}

type ImageList struct {
	Date   string  `json:"date,omitempty"`
	Images []Image `json:"images"`
}

type Error struct {
	Error string `json:"error"`
}
