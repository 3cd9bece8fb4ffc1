package network

// ClientMessage is an incoming command from a player's client.
type ClientMessage struct {
	Type string `json:"type"` // "useLocation"
	Need string `json:"need,omitempty"`
}

// UseResultMessage answers a useLocation request.
type UseResultMessage struct {
	Type string `json:"type"` // "useResult"
	Need string `json:"need"`
	OK   bool   `json:"ok"`
}

// EffectsMessage is the server-pushed presentation snapshot.
type EffectsMessage struct {
	Type    string `json:"type"` // "updateEffects"
	Hygiene int    `json:"hygiene"`
	Sleep   int    `json:"sleep"`
}

// NoticeMessage carries a server-wide announcement.
type NoticeMessage struct {
	Type string `json:"type"` // "notice"
	Text string `json:"text"`
}
