package db

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/go-faster/errors"
	"github.com/go-sql-driver/mysql"

	"github.com/hamzaKhattat/asterisk-channel-normalizer/internal/asterisk"
)

var DB *sql.DB

// Initialize creates the database named in dsn if needed, connects to it and
// creates the schema.
func Initialize(dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return errors.Wrap(err, "parse dsn")
	}
	if cfg.DBName == "" {
		return errors.New("dsn has no database name")
	}

	dbName := cfg.DBName
	cfg.DBName = ""

	// First connect without database to create it if needed
	tempDB, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return errors.Wrap(err, "open connection")
	}
	_, err = tempDB.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName))
	tempDB.Close()
	if err != nil {
		return errors.Wrap(err, "create database")
	}

	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	if err = DB.Ping(); err != nil {
		return errors.Wrap(err, "connect to database")
	}

	if err = createTables(DB); err != nil {
		return errors.Wrap(err, "create tables")
	}

	log.Println("Database initialized successfully")
	return nil
}

// DSN builds a go-sql-driver DSN with parseTime enabled.
func DSN(user, password, host string, port int, name string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func protocolEnum() string {
	s := ""
	for i, p := range asterisk.Protocols() {
		if i > 0 {
			s += ", "
		}
		s += "'" + p.String() + "'"
	}
	return s
}

func schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS peers (
            id INT AUTO_INCREMENT PRIMARY KEY,
            name VARCHAR(100) UNIQUE NOT NULL,
            protocol ENUM(` + protocolEnum() + `) NOT NULL,
            context VARCHAR(80),
            active BOOLEAN DEFAULT TRUE,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
            INDEX idx_protocol (protocol),
            INDEX idx_active (active)
        )`,

		`CREATE TABLE IF NOT EXISTS channel_records (
            id BIGINT AUTO_INCREMENT PRIMARY KEY,
            channel_id VARCHAR(255) NOT NULL,
            protocol VARCHAR(16) NOT NULL DEFAULT 'UNKNOWN',
            name VARCHAR(255),
            suffix VARCHAR(255),
            context VARCHAR(80),
            title VARCHAR(255),
            origin VARCHAR(16),
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            INDEX idx_channel_id (channel_id),
            INDEX idx_protocol (protocol),
            INDEX idx_created_at (created_at)
        )`,
	}
}

func createTables(conn *sql.DB) error {
	for _, query := range schema() {
		if _, err := conn.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
	}
}
