package types

// ---- Split link payloads ----

// LinkProfile is published retained on split/link/profile whenever the
// supervisor commits or re-commits a role. Gen increases on every commit.
type LinkProfile struct {
	Gen         uint32 `json:"gen"`
	Role        string `json:"role"`   // "left" | "right"
	Driver      string `json:"driver"` // "uart0" | "uart1"
	TX          int    `json:"tx"`
	RX          int    `json:"rx"`
	Baud        uint32 `json:"baud"`
	TxTimeoutMs uint16 `json:"tx_timeout_ms"`
	RxTimeoutMs uint16 `json:"rx_timeout_ms"`
	Trusted     bool   `json:"trusted"`
}

// LinkStatus is published retained on split/link/status after every
// supervisor transition that settles.
type LinkStatus struct {
	Link      Link   `json:"link"`
	State     string `json:"state"`
	Role      string `json:"role"`
	Connected bool   `json:"connected"`
	Master    bool   `json:"master"`
	TS        int64  `json:"ts_ms"`
}

// PortState is published retained on linkport/state by the UART owner.
type PortState struct {
	Level  string `json:"level"`  // "idle" | "opening" | "ready" | "backoff" | "stopped"
	Status string `json:"status"` // short code
	Gen    uint32 `json:"gen"`
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}
