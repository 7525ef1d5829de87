package tui

// ToolItem is a summary of a catalogue entry for the list view
type ToolItem struct {
	Name        string
	Description string
	Origin      string
	ServerID    string
	RemoteName  string
}

// ServerItem represents a registered tool server
type ServerItem struct {
	ID          string
	Prefix      string
	State       string
	ToolCount   int
	LastError   string
	ConnectedAt string
}

// InvocationItem represents an audit log entry
type InvocationItem struct {
	Tool       string
	Status     string
	ErrorKind  string
	Detail     string
	DurationMS int64
	StartedAt  string
}
