package model

// ProviderType identifies the backend variant an account uses.
type ProviderType string

const (
	ProviderIMAP  ProviderType = "imap"
	ProviderNylas ProviderType = "nylas"
	ProviderLocal ProviderType = "local"
)

// Account is one entry in the account list. The Provider field
// discriminates which backend variant the account constructs; each
// variant reads only the credential fields it needs.
type Account struct {
	// ID is the unique account identifier, auto-generated as
	// "account_<n>" when absent.
	ID string `json:"id"`

	// Provider selects the backend variant.
	Provider ProviderType `json:"provider"`

	// Name is the user-facing account label.
	Name string `json:"name"`

	// Email is the account's own address.
	Email string `json:"email,omitempty"`

	// Password authenticates IMAP and SMTP sessions. May be empty, in
	// which case the secret is resolved from the system keyring.
	Password string `json:"password,omitempty"`

	// IMAPHost and IMAPPort locate the mailbox-protocol server.
	// Retrieval defaults to TLS on port 993.
	IMAPHost string `json:"imap_server,omitempty"`
	IMAPPort int    `json:"imap_port,omitempty"`

	// SMTPHost and SMTPPort locate the submission server, used both by
	// the IMAP variant and as the local store's external relay.
	// Submission defaults to STARTTLS on port 587.
	SMTPHost     string `json:"smtp_server,omitempty"`
	SMTPPort     int    `json:"smtp_port,omitempty"`
	SMTPUsername string `json:"smtp_username,omitempty"`
	SMTPPassword string `json:"smtp_password,omitempty"`

	// APIKey, APIURI, and GrantID configure the cloud-API variant.
	// GrantID scopes every request to one account grant.
	APIKey  string `json:"api_key,omitempty"`
	APIURI  string `json:"api_uri,omitempty"`
	GrantID string `json:"grant_id,omitempty"`

	// StorageDir is where the local variant keeps its mailbox
	// documents.
	StorageDir string `json:"storage_dir,omitempty"`
}

// DisplayName returns the label shown for the account in the UI.
func (a Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.Email != "" {
		return a.Email
	}
	return a.ID
}
