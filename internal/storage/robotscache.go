// Package storage provides the optional on-disk cache for robots.txt
// policy, so repeated sessions against the same host skip a redundant
// fetch within the policy's TTL.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eulerity/imagecrawler/internal/types"
)

// RobotsCache persists parsed HostPolicy values keyed by host and agent.
// A cache miss or an expired entry is never an error to the caller — it
// just means the robots package will fetch the policy fresh.
type RobotsCache struct {
	db *sql.DB
}

const robotsCacheSchema = `
CREATE TABLE IF NOT EXISTS robots_policy (
	host TEXT NOT NULL,
	agent TEXT NOT NULL,
	fetch_failed INTEGER NOT NULL,
	groups_json TEXT NOT NULL,
	fetched_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	PRIMARY KEY (host, agent)
);

CREATE INDEX IF NOT EXISTS idx_robots_policy_expires ON robots_policy(expires_at);
`

// OpenRobotsCache opens (creating if needed) a SQLite-backed RobotsCache at
// dbPath.
func OpenRobotsCache(dbPath string) (*RobotsCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open robots cache: %w", err)
	}

	if _, err := db.Exec(robotsCacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create robots cache schema: %w", err)
	}

	return &RobotsCache{db: db}, nil
}

// Get returns the cached policy for host+agent if present and not expired.
func (c *RobotsCache) Get(host, agent string) (*types.HostPolicy, bool) {
	row := c.db.QueryRow(
		`SELECT fetch_failed, groups_json, fetched_at, expires_at
		 FROM robots_policy WHERE host = ? AND agent = ?`,
		strings.ToLower(host), strings.ToLower(agent),
	)

	var fetchFailed int
	var groupsJSON string
	var fetchedAt, expiresAt time.Time
	if err := row.Scan(&fetchFailed, &groupsJSON, &fetchedAt, &expiresAt); err != nil {
		return nil, false
	}

	if time.Now().After(expiresAt) {
		return nil, false
	}

	var groups map[string]*types.RuleGroup
	if err := json.Unmarshal([]byte(groupsJSON), &groups); err != nil {
		return nil, false
	}

	return &types.HostPolicy{
		Host:        host,
		FetchFailed: fetchFailed != 0,
		Groups:      groups,
		FetchedAt:   fetchedAt,
	}, true
}

// Put stores policy for host+agent with an expiry ttl from now.
func (c *RobotsCache) Put(host, agent string, policy *types.HostPolicy, ttl time.Duration) error {
	groupsJSON, err := json.Marshal(policy.Groups)
	if err != nil {
		return fmt.Errorf("marshal robots groups: %w", err)
	}

	fetchFailed := 0
	if policy.FetchFailed {
		fetchFailed = 1
	}

	_, err = c.db.Exec(
		`INSERT INTO robots_policy (host, agent, fetch_failed, groups_json, fetched_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(host, agent) DO UPDATE SET
			fetch_failed = excluded.fetch_failed,
			groups_json = excluded.groups_json,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at`,
		strings.ToLower(host), strings.ToLower(agent), fetchFailed, string(groupsJSON),
		policy.FetchedAt, policy.FetchedAt.Add(ttl),
	)
	return err
}

// Close closes the underlying database handle.
func (c *RobotsCache) Close() error {
	return c.db.Close()
}
