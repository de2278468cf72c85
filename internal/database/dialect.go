package database

import (
	"fmt"
	"strings"
)

// Dialect holds the few SQL fragments that differ between sqlite and mysql.
// Everything else is written once with ? placeholders.
type Dialect struct {
	Name string
	// Now is the store's own clock, millisecond precision.
	Now string
	// ForUpdate locks selected rows until the transaction ends. Empty for
	// sqlite, which serialises writers anyway.
	ForUpdate string

	timestamp     string
	nowDefault    string
	seqColumn     string
	binary        string
	separateIndex bool
}

var Sqlite = Dialect{
	Name:          "sqlite",
	Now:           "strftime('%Y-%m-%d %H:%M:%f', 'now')",
	ForUpdate:     "",
	timestamp:     "TIMESTAMP",
	nowDefault:    "(strftime('%Y-%m-%d %H:%M:%f', 'now'))",
	seqColumn:     "seq INTEGER PRIMARY KEY AUTOINCREMENT",
	binary:        "",
	separateIndex: true,
}

var Mysql = Dialect{
	Name:          "mysql",
	Now:           "CURRENT_TIMESTAMP(3)",
	ForUpdate:     " FOR UPDATE",
	timestamp:     "TIMESTAMP(3)",
	nowDefault:    "CURRENT_TIMESTAMP(3)",
	seqColumn:     "seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY",
	binary:        " COLLATE utf8mb4_bin",
	separateIndex: false,
}

// NowPlusSeconds returns an expression for the store's clock moved forward
// by the bound argument.
func (d Dialect) NowPlusSeconds(seconds int) (string, any) {
	if d.Name == Mysql.Name {
		return "DATE_ADD(CURRENT_TIMESTAMP(3), INTERVAL ? SECOND)", seconds
	}
	return "strftime('%Y-%m-%d %H:%M:%f', 'now', ?)", fmt.Sprintf("+%d seconds", seconds)
}

func (d Dialect) schema() []string {
	r := strings.NewReplacer(
		"{TIMESTAMP}", d.timestamp,
		"{NOW}", d.nowDefault,
		"{SEQ}", d.seqColumn,
		"{BINARY}", d.binary,
	)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(254) NOT NULL UNIQUE,
			username VARCHAR(20){BINARY} NOT NULL,
			discriminator INT NOT NULL,
			credential VARCHAR(255) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'offline',
			avatar VARCHAR(512) NOT NULL DEFAULT '',
			banner VARCHAR(512) NOT NULL DEFAULT '',
			bio VARCHAR(190) NOT NULL DEFAULT '',
			created_at {TIMESTAMP} NOT NULL DEFAULT {NOW},
			UNIQUE (username, discriminator)
		)`,
		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id VARCHAR(36) PRIMARY KEY,
			theme VARCHAR(16) NOT NULL DEFAULT 'dark',
			locale VARCHAR(10) NOT NULL DEFAULT 'en',
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS servers (
			id VARCHAR(36) PRIMARY KEY,
			owner_id VARCHAR(36) NOT NULL,
			name VARCHAR(100) NOT NULL,
			icon VARCHAR(512) NOT NULL DEFAULT '',
			created_at {TIMESTAMP} NOT NULL DEFAULT {NOW},
			FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS server_members (
			server_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(36) NOT NULL,
			joined_at {TIMESTAMP} NOT NULL DEFAULT {NOW},
			PRIMARY KEY (server_id, user_id),
			FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS channels (
			id VARCHAR(36) PRIMARY KEY,
			server_id VARCHAR(36) NULL,
			name VARCHAR(32) NOT NULL,
			kind VARCHAR(8) NOT NULL,
			position INT NOT NULL,
			created_at {TIMESTAMP} NOT NULL DEFAULT {NOW},
			UNIQUE (server_id, position),
			FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS direct_channels (
			user_low VARCHAR(36) NOT NULL,
			user_high VARCHAR(36) NOT NULL,
			channel_id VARCHAR(36) NOT NULL UNIQUE,
			PRIMARY KEY (user_low, user_high),
			FOREIGN KEY (user_low) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (user_high) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS invites (
			code VARCHAR(8){BINARY} PRIMARY KEY,
			server_id VARCHAR(36) NOT NULL,
			channel_id VARCHAR(36) NULL,
			inviter_id VARCHAR(36) NOT NULL,
			max_uses INT NOT NULL DEFAULT 0,
			uses INT NOT NULL DEFAULT 0,
			expires_at {TIMESTAMP} NULL,
			created_at {TIMESTAMP} NOT NULL DEFAULT {NOW},
			FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE,
			FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE,
			FOREIGN KEY (inviter_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			{SEQ},
			id VARCHAR(36) NOT NULL UNIQUE,
			channel_id VARCHAR(36) NOT NULL,
			author_id VARCHAR(36) NOT NULL,
			content TEXT NOT NULL,
			created_at {TIMESTAMP} NOT NULL DEFAULT {NOW},
			FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE,
			FOREIGN KEY (author_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
	}

	// innodb indexes foreign key columns on its own
	if d.separateIndex {
		statements = append(statements,
			`CREATE INDEX IF NOT EXISTS server_members_user ON server_members (user_id, joined_at)`,
			`CREATE INDEX IF NOT EXISTS messages_channel ON messages (channel_id, seq)`,
			`CREATE INDEX IF NOT EXISTS invites_server ON invites (server_id)`,
		)
	}

	for i := range statements {
		statements[i] = r.Replace(statements[i])
	}
	return statements
}
