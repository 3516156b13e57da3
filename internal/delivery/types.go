package delivery

// SourceFile references a stored asset owned by a seller. Read-only from the
// pipeline's perspective.
type SourceFile struct {
	URL         string
	ContentType string
	DisplayName string
}

// Request carries everything the orchestrator needs for one delivery
// attempt. All values are discarded when the attempt finishes.
type Request struct {
	OrderID        string
	OrderNumber    string
	BuyerName      string
	RecipientEmail string
	ProductTitle   string
	Files          []SourceFile
}

// Summary reports one delivery attempt for operational logs. It is never
// surfaced to the buyer.
type Summary struct {
	OrderID        string
	FilesAttempted int
	FilesAttached  int
	FilesFailed    int
	EmailSent      bool
	MessageID      string
}
