package models

// BlockAction is what the browser does with a blocked navigation.
type BlockAction string

const (
	BlockActionBlock    BlockAction = "block"
	BlockActionRedirect BlockAction = "redirect"
)

// BlockRule is one declarative network-blocking rule, shaped so the
// extension shim can hand it to the browser's dynamic rule API unchanged.
type BlockRule struct {
	ID            int         `json:"id"`
	Priority      int         `json:"priority"`
	Site          string      `json:"site"`
	Action        BlockAction `json:"action"`
	RedirectURL   string      `json:"redirectUrl,omitempty"`
	URLFilter     string      `json:"urlFilter"`
	ResourceTypes []string    `json:"resourceTypes"`
}
