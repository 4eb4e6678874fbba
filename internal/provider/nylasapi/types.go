package nylasapi

// Wire types for the grant-scoped messaging API. Every response wraps
// its payload in a "data" envelope.

type participant struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type wireAttachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type wireMessage struct {
	ID       string        `json:"id"`
	GrantID  string        `json:"grant_id,omitempty"`
	Subject  string        `json:"subject"`
	From     []participant `json:"from"`
	To       []participant `json:"to"`
	Cc       []participant `json:"cc,omitempty"`
	Bcc      []participant `json:"bcc,omitempty"`
	Date     int64         `json:"date"` // unix seconds
	Body     string        `json:"body"` // HTML
	Snippet  string        `json:"snippet,omitempty"`
	Unread   bool          `json:"unread"`
	Starred  bool          `json:"starred"`
	ThreadID string        `json:"thread_id,omitempty"`
	Folders  []string      `json:"folders,omitempty"`

	Attachments []wireAttachment `json:"attachments,omitempty"`
}

type wireFolder struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	UnreadCount int    `json:"unread_count"`
	TotalCount  int    `json:"total_count"`
}

type messageListResponse struct {
	Data []wireMessage `json:"data"`
}

type messageResponse struct {
	Data wireMessage `json:"data"`
}

type folderListResponse struct {
	Data []wireFolder `json:"data"`
}

type attachmentResponse struct {
	Data wireAttachment `json:"data"`
}

type sendRequest struct {
	To        []participant `json:"to"`
	Cc        []participant `json:"cc,omitempty"`
	Bcc       []participant `json:"bcc,omitempty"`
	Subject   string        `json:"subject"`
	Body      string        `json:"body"`
	ReplyToID string        `json:"reply_to_message_id,omitempty"`
}

type updateMessageRequest struct {
	Unread bool `json:"unread"`
}
