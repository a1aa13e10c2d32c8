package types

// ---- Common service state (retained) ----

// Link is the reported state of a serial link.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

// Bus topic tokens.
const (
	TokSplit    = "split"
	TokLink     = "link"
	TokProfile  = "profile"
	TokStatus   = "status"
	TokLinkPort = "linkport"
	TokState    = "state"
)
