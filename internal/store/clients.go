package store

import (
	"context"
	"fmt"
)

// ProjectStatuses lists the accepted client project states.
var ProjectStatuses = []string{"active", "on_hold", "completed"}

// Client is an entry in the client registry.
type Client struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	ProjectStatus string  `json:"project_status"`
	LastContact   *string `json:"last_contact"`
	Notes         string  `json:"notes"`
	CreatedAt     string  `json:"created_at"`
}

// ClientInput is the body of a client creation.
type ClientInput struct {
	Name          string  `json:"name"           yaml:"name"`
	Email         string  `json:"email"          yaml:"email"`
	ProjectStatus string  `json:"project_status" yaml:"project_status"`
	LastContact   *string `json:"last_contact"   yaml:"last_contact"`
	Notes         string  `json:"notes"          yaml:"notes"`
}

// ClientPatch carries the fields of a partial client update.
type ClientPatch struct {
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	ProjectStatus *string `json:"project_status"`
	LastContact   *string `json:"last_contact"`
	Notes         *string `json:"notes"`
}

const clientColumns = `id, name, email, project_status, last_contact, notes, created_at`

func scanClient(sc rowScanner, c *Client) error {
	return sc.Scan(&c.ID, &c.Name, &c.Email, &c.ProjectStatus, &c.LastContact, &c.Notes, &c.CreatedAt)
}

// ListClients returns clients newest first.
func (s *Store) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := s.queryRows(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list clients: %w", err)
	}
	defer rows.Close()

	out := []Client{}
	for rows.Next() {
		var c Client
		if err := scanClient(rows, &c); err != nil {
			return nil, fmt.Errorf("store: scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetClient returns one client by id.
func (s *Store) GetClient(ctx context.Context, id int64) (*Client, error) {
	var c Client
	if err := scanClient(s.queryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id), &c); err != nil {
		return nil, notFoundOr(err, "get client", id)
	}
	return &c, nil
}

// CreateClient inserts a client; an empty project status defaults to "active".
func (s *Store) CreateClient(ctx context.Context, in ClientInput) (*Client, error) {
	if in.ProjectStatus == "" {
		in.ProjectStatus = "active"
	}
	now := s.timestamp()
	id, err := s.insert(ctx, s.w(), `
		INSERT INTO clients (name, email, project_status, last_contact, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.Name, in.Email, in.ProjectStatus, in.LastContact, in.Notes, now,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create client: %w", err)
	}
	return &Client{
		ID:            id,
		Name:          in.Name,
		Email:         in.Email,
		ProjectStatus: in.ProjectStatus,
		LastContact:   in.LastContact,
		Notes:         in.Notes,
		CreatedAt:     now,
	}, nil
}

// UpdateClient applies a partial update.
func (s *Store) UpdateClient(ctx context.Context, id int64, p ClientPatch) error {
	var a assignments
	if p.Name != nil {
		a.set("name", *p.Name)
	}
	if p.Email != nil {
		a.set("email", *p.Email)
	}
	if p.ProjectStatus != nil {
		a.set("project_status", *p.ProjectStatus)
	}
	if p.LastContact != nil {
		a.set("last_contact", *p.LastContact)
	}
	if p.Notes != nil {
		a.set("notes", *p.Notes)
	}
	return s.updateByID(ctx, "update client", "clients", id, a)
}

// DeleteClient removes a client.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "delete client", "clients", id)
}
