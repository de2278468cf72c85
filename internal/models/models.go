package models

import "time"

type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
	StatusIdle    UserStatus = "idle"
	StatusDnd     UserStatus = "dnd"
)

func (s UserStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusIdle, StatusDnd:
		return true
	}
	return false
}

type ChannelKind string

const (
	ChannelText   ChannelKind = "text"
	ChannelVoice  ChannelKind = "voice"
	ChannelDirect ChannelKind = "direct"
)

// User is the owner's view of an account. The credential never leaves the
// identity package, so it has no field here.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email,omitempty"`
	UserName      string     `json:"userName"`
	Discriminator string     `json:"discriminator"`
	Handle        string     `json:"handle"`
	Status        UserStatus `json:"status"`
	Avatar        string     `json:"avatar"`
	Banner        string     `json:"banner"`
	Bio           string     `json:"bio"`
	Theme         string     `json:"theme"`
	Locale        string     `json:"locale"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// PublicUser is what other users get to see.
type PublicUser struct {
	ID            string     `json:"id"`
	UserName      string     `json:"userName"`
	Discriminator string     `json:"discriminator"`
	Handle        string     `json:"handle"`
	Avatar        string     `json:"avatar"`
	Status        UserStatus `json:"status"`
}

type Server struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerID"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"createdAt"`
}

type ServerDetail struct {
	Server
	Channels []Channel   `json:"channels"`
	Members  []PublicUser `json:"members"`
}

type Channel struct {
	ID        string      `json:"id"`
	ServerID  string      `json:"serverID,omitempty"`
	Name      string      `json:"name"`
	Kind      ChannelKind `json:"kind"`
	Position  int         `json:"position"`
	CreatedAt time.Time   `json:"createdAt"`
}

type DirectChannel struct {
	Channel
	Recipient PublicUser `json:"recipient"`
}

type Membership struct {
	ServerID string    `json:"serverID"`
	UserID   string    `json:"userID"`
	JoinedAt time.Time `json:"joinedAt"`
}

type InviteCode struct {
	Code      string     `json:"code"`
	ServerID  string     `json:"serverID"`
	ChannelID string     `json:"channelID,omitempty"`
	InviterID string     `json:"inviterID"`
	MaxUses   int        `json:"maxUses"`
	Uses      int        `json:"uses"`
	ExpiresAt *time.Time `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

type InvitePreview struct {
	Code        string `json:"code"`
	ServerID    string `json:"serverID"`
	ServerName  string `json:"serverName"`
	ServerIcon  string `json:"serverIcon"`
	MemberCount int    `json:"memberCount"`
}

type Message struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channelID"`
	AuthorID  string     `json:"authorID"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	Author    PublicUser `json:"author"`
}

type ConfigFile struct {
	Address           string        `yaml:"address" json:"address" env:"ADDRESS" env-default:"0.0.0.0"`
	Port              string        `yaml:"port" json:"port" env:"PORT" env-default:"3000"`
	TlsCert           string        `yaml:"tls_cert" json:"tlsCert" env:"TLS_CERT"`
	TlsKey            string        `yaml:"tls_key" json:"tlsKey" env:"TLS_KEY"`
	PrintHttpRequests bool          `yaml:"print_http_requests" json:"printHttpRequests" env:"PRINT_HTTP_REQUESTS" env-default:"false"`
	LogToFile         bool          `yaml:"log_to_file" json:"logToFile" env:"LOG_TO_FILE" env-default:"false"`
	LogLevel          string        `yaml:"log_level" json:"logLevel" env:"LOG_LEVEL" env-default:"info"`
	JwtSecret         string        `yaml:"jwt_secret" json:"jwtSecret" env:"JWT_SECRET"`
	SelfContained     bool          `yaml:"self_contained" json:"selfContained" env:"SELF_CONTAINED"`
	SqlitePath        string        `yaml:"sqlite_path" json:"sqlitePath" env:"SQLITE_PATH" env-default:"./database.db"`
	DbUser            string        `yaml:"db_user" json:"dbUser" env:"DB_USER"`
	DbPassword        string        `yaml:"db_password" json:"dbPassword" env:"DB_PASSWORD"`
	DbAddress         string        `yaml:"db_address" json:"dbAddress" env:"DB_ADDRESS" env-default:"127.0.0.1"`
	DbPort            string        `yaml:"db_port" json:"dbPort" env:"DB_PORT" env-default:"3306"`
	DbDatabase        string        `yaml:"db_database" json:"dbDatabase" env:"DB_DATABASE"`
	StoreTimeout      time.Duration `yaml:"store_timeout" json:"storeTimeout" env:"STORE_TIMEOUT" env-default:"5s"`
	BcryptCost        int           `yaml:"bcrypt_cost" json:"bcryptCost" env:"BCRYPT_COST" env-default:"12"`
	RedisAddress      string        `yaml:"redis_address" json:"redisAddress" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	RedisPassword     string        `yaml:"redis_password" json:"redisPassword" env:"REDIS_PASSWORD"`
	RedisDB           int           `yaml:"redis_db" json:"redisDB" env:"REDIS_DB" env-default:"0"`
}
