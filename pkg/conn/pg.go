// Package conn opens the relational database behind the audit trail.
package conn

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Option selects a PostgreSQL server. A non-empty ConnString wins over the fields.
type Option struct {
	ConnString string            `mapstructure:"dsn"`
	Host       string            `mapstructure:"host"`
	Port       int               `mapstructure:"port"`
	User       string            `mapstructure:"user"`
	Password   string            `mapstructure:"password"`
	Database   string            `mapstructure:"database"`
	SSLMode    string            `mapstructure:"sslMode"`
	Params     map[string]string `mapstructure:"params"`
	Pool       Pool              `mapstructure:"pool"`
	Config     *gorm.Config      `mapstructure:"-"`
}

// Pool sizes the underlying database/sql pool. Zero values keep the driver defaults.
type Pool struct {
	MaxOpen     int           `mapstructure:"maxOpen"`
	MaxIdle     int           `mapstructure:"maxIdle"`
	MaxLifetime time.Duration `mapstructure:"maxLifetime"`
}

func (opt Option) Empty() bool {
	return opt.ConnString == "" && opt.Host == "" && opt.Database == ""
}

type Client struct {
	db *gorm.DB
}

// New connects to PostgreSQL and verifies the server answers within five seconds.
func New(option Option) (*Client, error) {
	dsn, err := option.dsn()
	if err != nil {
		return nil, err
	}
	c, err := Open(postgres.Open(dsn), option.Config)
	if err != nil {
		return nil, err
	}
	if err := c.Tune(option.Pool); err != nil {
		_ = c.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Open creates a client over any gorm dialector. A nil config logs slow and failed
// statements only.
func Open(dialector gorm.Dialector, config *gorm.Config) (*Client, error) {
	if config == nil {
		config = &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	}
	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	return &Client{db: db}, nil
}

func (c *Client) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Tune applies pool limits.
func (c *Client) Tune(p Pool) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql db")
	}
	if p.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(p.MaxOpen)
	}
	if p.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(p.MaxIdle)
	}
	if p.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(p.MaxLifetime)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping database")
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt Option) dsn() (string, error) {
	if opt.ConnString != "" {
		return opt.ConnString, nil
	}

	host, port, sslMode := opt.Host, opt.Port, opt.SSLMode
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 5432
	}
	if port < 0 || port > 65535 {
		return "", errors.Errorf("invalid postgres port %d", port)
	}
	if sslMode == "" {
		sslMode = "disable"
	}

	q := url.Values{"sslmode": {sslMode}}
	for k, v := range opt.Params {
		if k != "" {
			q.Set(k, v)
		}
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		RawQuery: q.Encode(),
	}
	switch {
	case opt.User != "" && opt.Password != "":
		u.User = url.UserPassword(opt.User, opt.Password)
	case opt.User != "":
		u.User = url.User(opt.User)
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}
	return u.String(), nil
}
