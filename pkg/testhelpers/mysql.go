package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver for seeding
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MySQLImage is the image used for MySQL integration tests.
const MySQLImage = "mysql:8.0"

// Credentials of the seeded MySQL container.
const (
	MySQLUser     = "root"
	MySQLPassword = "test_password"
	MySQLDatabase = "test_data"
)

var mysqlSeed = []string{
	`CREATE TABLE customers (
		customer_id INT AUTO_INCREMENT PRIMARY KEY,
		email       VARCHAR(255) NOT NULL,
		region      VARCHAR(16) NULL
	)`,
	`CREATE TABLE orders (
		order_id     INT AUTO_INCREMENT PRIMARY KEY,
		customer_id  INT NOT NULL,
		status       VARCHAR(16) NOT NULL,
		total_amount DECIMAL(12,2),
		CONSTRAINT fk_orders_customer FOREIGN KEY (customer_id) REFERENCES customers(customer_id)
	)`,
	`INSERT INTO customers (email, region) VALUES
		('a@example.com', 'EU'), ('b@example.com', NULL), ('c@example.com', 'EU'), ('d@example.com', NULL)`,
	`INSERT INTO orders (customer_id, status, total_amount) VALUES
		(1, 'OPEN', 10), (2, 'SHIPPED', 20), (3, 'OPEN', 30)`,
	`CREATE VIEW open_orders AS
		SELECT o.order_id, c.email FROM orders o JOIN customers c ON c.customer_id = o.customer_id WHERE o.status = 'OPEN'`,
	`CREATE PROCEDURE customer_orders(IN p_customer INT)
		BEGIN
			SELECT o.order_id, o.total_amount FROM orders o WHERE o.customer_id = p_customer;
		END`,
}

// MySQLDB holds a shared MySQL container.
type MySQLDB struct {
	Container testcontainers.Container
	DB        *sql.DB
	Host      string
	Port      int
}

var (
	sharedMySQL     *MySQLDB
	sharedMySQLOnce sync.Once
	sharedMySQLErr  error
)

// GetMySQLDB returns a shared seeded MySQL container for integration tests.
func GetMySQLDB(t *testing.T) *MySQLDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMySQLOnce.Do(func() {
		sharedMySQL, sharedMySQLErr = setupMySQL()
	})

	if sharedMySQLErr != nil {
		t.Fatalf("Failed to setup MySQL database: %v", sharedMySQLErr)
	}

	return sharedMySQL
}

func setupMySQL() (*MySQLDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        MySQLImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": MySQLPassword,
			"MYSQL_DATABASE":      MySQLDatabase,
		},
		// The init server logs port 0; the real one listens on 3306.
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start MySQL container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", MySQLUser, MySQLPassword, host, port.Port(), MySQLDatabase)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	for _, stmt := range mysqlSeed {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to seed MySQL: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "ANALYZE TABLE customers, orders"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to analyze MySQL tables: %w", err)
	}

	return &MySQLDB{
		Container: container,
		DB:        db,
		Host:      host,
		Port:      port.Int(),
	}, nil
}
