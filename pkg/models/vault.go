package models

type VaultExport struct {
	Encrypted bool          `json:"encrypted" yaml:"encrypted"`
	Folders   []Folder      `json:"folders" yaml:"folders"`
	Items     []VaultRecord `json:"items" yaml:"items"`

	// InvalidItems counts entries dropped while decoding (non-objects, missing id or name).
	InvalidItems int `json:"-" yaml:"-"`
}

type Folder struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type VaultRecord struct {
	ID             string   `json:"id" yaml:"id"`
	OrganizationID *string  `json:"organizationId,omitempty" yaml:"organization_id,omitempty"`
	FolderID       *string  `json:"folderId,omitempty" yaml:"folder_id,omitempty"`
	Type           int      `json:"type" yaml:"type"`
	Reprompt       int      `json:"reprompt,omitempty" yaml:"reprompt,omitempty"`
	Name           *string  `json:"name" yaml:"name"`
	Notes          *string  `json:"notes,omitempty" yaml:"notes,omitempty"`
	Favorite       bool     `json:"favorite" yaml:"favorite"`
	Login          *Login   `json:"login,omitempty" yaml:"login,omitempty"`
	CollectionIDs  []string `json:"collectionIds,omitempty" yaml:"collection_ids,omitempty"`
	RevisionDate   string   `json:"revisionDate" yaml:"revision_date"`
	CreationDate   string   `json:"creationDate" yaml:"creation_date"`
	DeletedDate    *string  `json:"deletedDate,omitempty" yaml:"deleted_date,omitempty"`

	// HasName is set by the decoder when the "name" key is present, even with a null value.
	HasName bool `json:"-" yaml:"-"`
}

type Login struct {
	URIs                 []LoginURI `json:"uris,omitempty" yaml:"uris,omitempty"`
	Username             *string    `json:"username" yaml:"username"`
	Password             *string    `json:"password" yaml:"password"`
	TOTP                 *string    `json:"totp" yaml:"totp"`
	PasswordRevisionDate *string    `json:"passwordRevisionDate,omitempty" yaml:"password_revision_date,omitempty"`
}

type LoginURI struct {
	URI   *string `json:"uri" yaml:"uri"`
	Match *int    `json:"match,omitempty" yaml:"match,omitempty"`
}

// Valid reports whether the record can be analyzed: it needs an id and a "name" key,
// which may be null.
func (r VaultRecord) Valid() bool {
	return r.ID != "" && r.HasName
}

func (r VaultRecord) Password() string {
	if r.Login == nil || r.Login.Password == nil {
		return ""
	}
	return *r.Login.Password
}

func (r VaultRecord) Username() string {
	if r.Login == nil || r.Login.Username == nil {
		return ""
	}
	return *r.Login.Username
}

func (r VaultRecord) TOTP() string {
	if r.Login == nil || r.Login.TOTP == nil {
		return ""
	}
	return *r.Login.TOTP
}

// PrimaryURI returns the first URI of the login, or "" when there is none.
func (r VaultRecord) PrimaryURI() string {
	if r.Login == nil || len(r.Login.URIs) == 0 || r.Login.URIs[0].URI == nil {
		return ""
	}
	return *r.Login.URIs[0].URI
}

func (r VaultRecord) DisplayName() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}

// Clone returns a deep copy so callers can normalize without touching the source record.
func (r VaultRecord) Clone() VaultRecord {
	out := r
	out.OrganizationID = cloneString(r.OrganizationID)
	out.FolderID = cloneString(r.FolderID)
	out.Name = cloneString(r.Name)
	out.Notes = cloneString(r.Notes)
	out.DeletedDate = cloneString(r.DeletedDate)
	if r.CollectionIDs != nil {
		out.CollectionIDs = append([]string(nil), r.CollectionIDs...)
	}
	if r.Login != nil {
		l := *r.Login
		l.Username = cloneString(r.Login.Username)
		l.Password = cloneString(r.Login.Password)
		l.TOTP = cloneString(r.Login.TOTP)
		l.PasswordRevisionDate = cloneString(r.Login.PasswordRevisionDate)
		if r.Login.URIs != nil {
			l.URIs = make([]LoginURI, len(r.Login.URIs))
			for i, u := range r.Login.URIs {
				l.URIs[i] = LoginURI{URI: cloneString(u.URI), Match: cloneInt(u.Match)}
			}
		}
		out.Login = &l
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func StringPtr(s string) *string { return &s }
