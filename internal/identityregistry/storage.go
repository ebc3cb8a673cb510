package identityregistry

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrFingerprintMismatch is returned when a node id re-registers from
// what looks like a different machine than the one that registered it
// originally.
var ErrFingerprintMismatch = errors.New("identityregistry: fingerprint does not match existing registration")

// Storage persists long-term node identities: node_id -> K1 public
// key, plus the reporting device's fingerprint for replay detection.
// Unlike the file-key store this is adapted from, the payload here is
// a public key, so nothing at rest needs to be encrypted.
type Storage struct {
	db *sql.DB
}

func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("identityregistry: open db: %w", err)
	}
	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("identityregistry: init schema: %w", err)
	}
	return s, nil
}

func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS identities (
		id TEXT PRIMARY KEY,
		node_id TEXT UNIQUE NOT NULL,
		k1_pub_der BLOB NOT NULL,
		fingerprint TEXT,
		registered_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_identities_node ON identities(node_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Storage) Close() error { return s.db.Close() }

// Register inserts a fresh identity, or overwrites the K1 public key
// and fingerprint of an existing node_id. It rejects the overwrite
// with ErrFingerprintMismatch only when both the stored and the new
// fingerprint are non-empty and differ; a changed key alone is
// accepted.
func (s *Storage) Register(nodeID string, k1PubDER []byte, fingerprint string) error {
	existing, err := s.Get(nodeID)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Fingerprint != "" && fingerprint != "" && existing.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		_, err := s.db.Exec(
			`UPDATE identities SET k1_pub_der = ?, fingerprint = ? WHERE node_id = ?`,
			k1PubDER, fingerprint, nodeID,
		)
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO identities (id, node_id, k1_pub_der, fingerprint, registered_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), nodeID, k1PubDER, fingerprint, time.Now().Unix(),
	)
	return err
}

func (s *Storage) Get(nodeID string) (*IdentityRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, node_id, k1_pub_der, fingerprint, registered_at FROM identities WHERE node_id = ?`,
		nodeID,
	)
	var rec IdentityRecord
	var registeredAt int64
	err := row.Scan(&rec.ID, &rec.NodeID, &rec.K1PubDER, &rec.Fingerprint, &registeredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.RegisteredAt = registeredAt
	rec.K1PubB64 = base64.StdEncoding.EncodeToString(rec.K1PubDER)
	return &rec, nil
}

func (s *Storage) List() ([]IdentityRecord, error) {
	rows, err := s.db.Query(`SELECT id, node_id, k1_pub_der, fingerprint, registered_at FROM identities ORDER BY registered_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IdentityRecord
	for rows.Next() {
		var rec IdentityRecord
		var registeredAt int64
		if err := rows.Scan(&rec.ID, &rec.NodeID, &rec.K1PubDER, &rec.Fingerprint, &registeredAt); err != nil {
			return nil, err
		}
		rec.RegisteredAt = registeredAt
		rec.K1PubB64 = base64.StdEncoding.EncodeToString(rec.K1PubDER)
		out = append(out, rec)
	}
	return out, rows.Err()
}
