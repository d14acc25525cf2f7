package entity

// ServiceCredentials are the long-lived settings needed to push to the warehouse
type ServiceCredentials struct {
	ProjectID    string
	DatasetID    string
	TableID      string
	ClientEmail  string
	PrivateKey   string
	PrivateKeyID string
	TokenURI     string
}

// MissingFields lists required fields that are empty, using their config names
func (c *ServiceCredentials) MissingFields() []string {
	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if c.DatasetID == "" {
		missing = append(missing, "dataset_id")
	}
	if c.TableID == "" {
		missing = append(missing, "table_id")
	}
	if c.ClientEmail == "" {
		missing = append(missing, "client_email")
	}
	if c.PrivateKey == "" {
		missing = append(missing, "private_key")
	}
	if c.TokenURI == "" {
		missing = append(missing, "token_uri")
	}
	return missing
}

// IsComplete reports whether every required field is set
func (c *ServiceCredentials) IsComplete() bool {
	return len(c.MissingFields()) == 0
}
