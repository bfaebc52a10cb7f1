package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/database"
)

// PostgresContainer represents a PostgreSQL container with pgvector
type PostgresContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
	User      string
	Password  string
	Database  string
}

// NewPostgresContainer creates and starts a PostgreSQL container with pgvector
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:0.8.1-pg18",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "jargonrag",
			"POSTGRES_PASSWORD": "jargonrag",
			"POSTGRES_DB":       "jargonrag",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}

	container := startContainer(ctx, t, req)

	return &PostgresContainer{
		Container: container,
		Host:      host(ctx, t, container),
		Port:      mappedPort(ctx, t, container, "5432"),
		User:      "jargonrag",
		Password:  "jargonrag",
		Database:  "jargonrag",
	}
}

// ConnectionString returns the PostgreSQL connection string
func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pc.User, pc.Password, pc.Host, pc.Port, pc.Database)
}

// Terminate stops and removes the container
func (pc *PostgresContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(pc.Container)
}

// NewTestPool connects to the container and applies the embedded migrations
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer) *pgxpool.Pool {
	var pool *pgxpool.Pool
	var err error
	for i := 0; i < 5; i++ {
		pool, err = database.NewPool(ctx, database.Config{URL: pc.ConnectionString()})
		if err == nil {
			break
		}
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to create pool after retries: %v", err)
	}

	if err := database.RunMigrations(pc.ConnectionString(), zap.NewNop()); err != nil {
		pool.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return pool
}

// Neo4jContainer represents a Neo4j container with vector index support
type Neo4jContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
	User      string
	Password  string
}

// NewNeo4jContainer creates and starts a Neo4j 5 container
func NewNeo4jContainer(ctx context.Context, t *testing.T) *Neo4jContainer {
	req := testcontainers.ContainerRequest{
		Image:        "neo4j:5.26",
		ExposedPorts: []string{"7687/tcp"},
		Env: map[string]string{
			"NEO4J_AUTH": "neo4j/jargonrag-test",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("Started."),
			wait.ForListeningPort("7687/tcp"),
		).WithStartupTimeout(120 * time.Second),
	}

	container := startContainer(ctx, t, req)

	return &Neo4jContainer{
		Container: container,
		Host:      host(ctx, t, container),
		Port:      mappedPort(ctx, t, container, "7687"),
		User:      "neo4j",
		Password:  "jargonrag-test",
	}
}

// URI returns the bolt URI of the container
func (nc *Neo4jContainer) URI() string {
	return fmt.Sprintf("bolt://%s:%s", nc.Host, nc.Port)
}

// Terminate stops and removes the container
func (nc *Neo4jContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(nc.Container)
}

// RustFSContainer represents an S3-compatible RustFS container
type RustFSContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
	AccessKey string
	SecretKey string
}

// NewRustFSContainer creates and starts a RustFS container
func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	req := testcontainers.ContainerRequest{
		Image:        "rustfs/rustfs:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": "rustfsadmin",
			"RUSTFS_SECRET_KEY": "rustfsadmin",
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}

	container := startContainer(ctx, t, req)

	return &RustFSContainer{
		Container: container,
		Host:      host(ctx, t, container),
		Port:      mappedPort(ctx, t, container, "9000"),
		AccessKey: "rustfsadmin",
		SecretKey: "rustfsadmin",
	}
}

// Endpoint returns the RustFS endpoint URL
func (rc *RustFSContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", rc.Host, rc.Port)
}

// Terminate stops and removes the container
func (rc *RustFSContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(rc.Container)
}

func startContainer(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest) testcontainers.Container {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to create %s container: %v", req.Image, err)
	}
	return container
}

func host(ctx context.Context, t *testing.T, c testcontainers.Container) string {
	h, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	return h
}

func mappedPort(ctx context.Context, t *testing.T, c testcontainers.Container, port nat.Port) string {
	p, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}
	return p.Port()
}
