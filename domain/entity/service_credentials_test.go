package entity

import (
	"reflect"
	"testing"
)

func TestServiceCredentials_MissingFields(t *testing.T) {
	creds := &ServiceCredentials{ProjectID: "p", TableID: "t", TokenURI: "https://oauth2.googleapis.com/token"}

	want := []string{"dataset_id", "client_email", "private_key"}
	if got := creds.MissingFields(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if creds.IsComplete() {
		t.Error("expected incomplete credentials")
	}

	creds.DatasetID = "d"
	creds.ClientEmail = "sa@p.iam.gserviceaccount.com"
	creds.PrivateKey = "pem"
	if !creds.IsComplete() {
		t.Errorf("expected complete credentials, missing %v", creds.MissingFields())
	}
}
