package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcclickhouse "github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/keeprun/keeprun/internal/history"
)

func setupClickHouse(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcclickhouse.Run(ctx, "clickhouse/clickhouse-server:24.3.2.23",
		tcclickhouse.WithUsername("default"),
		tcclickhouse.WithPassword(""),
		tcclickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)))
	if err != nil {
		t.Fatalf("failed to start ClickHouse container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestConnectionError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	if _, err := New("invalid-host-keeprun-test:9000", "run_history"); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

func TestSendEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	addr := setupClickHouse(t)
	sink, err := New(addr, "run_history")
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	now := time.Now().UTC()
	events := []history.Event{
		{Type: history.EventStart, OccurredAt: now,
			Record: history.Record{Name: "bot", PID: 200, Run: 1}},
		{Type: history.EventExit, OccurredAt: now.Add(30 * time.Second),
			Record: history.Record{Name: "bot", PID: 200, Run: 1, ExitCode: 137}},
	}
	for _, ev := range events {
		if err := sink.Send(ctx, ev); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	var count uint64
	err = sink.conn.QueryRow(ctx,
		`SELECT count() FROM run_history WHERE name = ?`, "bot").Scan(&count)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 2 {
		t.Errorf("got %d rows, want 2", count)
	}

	var exitCode int32
	err = sink.conn.QueryRow(ctx,
		`SELECT exit_code FROM run_history WHERE event = ?`, "exit").Scan(&exitCode)
	if err != nil {
		t.Fatalf("exit code query failed: %v", err)
	}
	if exitCode != 137 {
		t.Errorf("exit_code = %d, want 137", exitCode)
	}
}

func TestCustomTableName(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	addr := setupClickHouse(t)
	sink, err := New(addr, "custom_history")
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ev := history.Event{
		Type:       history.EventStart,
		OccurredAt: time.Now().UTC(),
		Record:     history.Record{Name: "bot", PID: 1, Run: 1},
	}
	if err := sink.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
}
