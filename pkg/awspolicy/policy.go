package awspolicy

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/opencdh/datahub-in-go/pkg/arn"
)

// Version is the policy language version used for all generated documents.
const Version = "2012-10-17"

// Statement is a single policy statement. Principal, Action, Resource and
// Condition keep the provider's loose typing (string or list of strings).
type Statement struct {
	Sid       string         `json:"Sid,omitempty"`
	Effect    string         `json:"Effect"`
	Principal any            `json:"Principal,omitempty"`
	Action    any            `json:"Action"`
	Resource  any            `json:"Resource,omitempty"`
	Condition map[string]any `json:"Condition,omitempty"`
}

// Document is a full policy document. Documents are treated as values:
// mutating operations return a copy.
type Document struct {
	Version   string      `json:"Version"`
	ID        string      `json:"Id,omitempty"`
	Statement []Statement `json:"Statement"`
}

// New creates a document from the given statements.
func New(statements ...Statement) Document {
	return Document{Version: Version, Statement: statements}
}

// Parse decodes a raw JSON policy document.
func Parse(raw string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Document{}, fmt.Errorf("parse policy document: %w", err)
	}
	return doc, nil
}

// JSON encodes the document.
func (d Document) JSON() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode policy document: %w", err)
	}
	return string(b), nil
}

// GetStatement returns the statement with the given Sid, if present.
func (d Document) GetStatement(sid string) (Statement, bool) {
	for _, s := range d.Statement {
		if s.Sid == sid {
			return s, true
		}
	}
	return Statement{}, false
}

// AddOrUpdateStatement returns a copy of the document with the statement
// replaced in place when a statement with the same Sid exists, appended
// otherwise.
func (d Document) AddOrUpdateStatement(stmt Statement) Document {
	statements := make([]Statement, 0, len(d.Statement)+1)
	replaced := false
	for _, s := range d.Statement {
		if s.Sid == stmt.Sid && stmt.Sid != "" {
			statements = append(statements, stmt)
			replaced = true
			continue
		}
		statements = append(statements, s)
	}
	if !replaced {
		statements = append(statements, stmt)
	}
	d.Statement = statements
	return d
}

// DeleteStatementIfPresent returns a copy of the document without the
// statement carrying the given Sid. Removing an absent Sid is a no-op.
func (d Document) DeleteStatementIfPresent(sid string) Document {
	statements := make([]Statement, 0, len(d.Statement))
	for _, s := range d.Statement {
		if s.Sid == sid {
			continue
		}
		statements = append(statements, s)
	}
	d.Statement = statements
	return d
}

// AccountPrincipals returns the sorted root principal ARNs for a set of
// account IDs. Sorting keeps regenerated documents deterministic.
func AccountPrincipals(partition string, accountIDs []string) []string {
	principals := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		principals = append(principals, arn.IAMRoot(partition, id))
	}
	sort.Strings(principals)
	return principals
}
