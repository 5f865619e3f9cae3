package trials

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SignatureStore records parameter fingerprints before evaluation so that
// concurrent sweep processes skip parameter sets another process already
// claimed. Claims survive process restarts.
type SignatureStore struct {
	db *sql.DB
}

const signatureSchema = `
CREATE TABLE IF NOT EXISTS signatures (
	fingerprint TEXT PRIMARY KEY,
	claimed_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

func NewSignatureStore(path string) (*SignatureStore, error) {
	// Busy timeout instead of immediate SQLITE_BUSY: concurrent claimers
	// briefly queue on the write lock.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(signatureSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SignatureStore{db: db}, nil
}

// Claim attempts to register a fingerprint. It returns true when this call
// won the claim and false when any process (this one included) already holds
// it. INSERT OR IGNORE makes the check-and-claim a single atomic statement,
// so two processes racing on the same fingerprint cannot both win.
func (s *SignatureStore) Claim(fingerprint string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO signatures (fingerprint) VALUES (?)`, fingerprint)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Seen reports whether a fingerprint is already claimed, without claiming.
func (s *SignatureStore) Seen(fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM signatures WHERE fingerprint = ?`, fingerprint).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SignatureStore) Close() error {
	return s.db.Close()
}
