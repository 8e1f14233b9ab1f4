package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
)

var ErrNotFound = errors.New("document not found")

// saveDoc upserts an entity under docID, carrying the CouchDB revision over
// from the stored copy so the put is not rejected.
func saveDoc(client *kivik.Client, dbName, docID string, entity interface{}) error {
	db := client.DB(dbName)

	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	var existing map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&existing); err == nil {
		if rev, ok := existing["_rev"].(string); ok {
			doc["_rev"] = rev
		}
	}

	if _, err := db.Put(context.Background(), docID, doc); err != nil {
		return fmt.Errorf("failed to save document %s: %w", docID, err)
	}
	return nil
}

func getDoc(client *kivik.Client, dbName, docID string, out interface{}) error {
	db := client.DB(dbName)

	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(out); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to fetch document %s: %w", docID, err)
	}
	return nil
}
