//go:build integration

package history

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })
	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisHistory(t *testing.T) {
	ctx := context.Background()
	client, err := Dial(ctx, startRedis(t, ctx), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	h := NewRedis(client, 3, time.Minute)
	for _, s := range []string{"a", "b", "c", "d"} {
		if err := h.Add(ctx, "chat", s); err != nil {
			t.Fatal(err)
		}
	}
	got, err := h.Recent(ctx, "chat")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"d", "c", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Recent = %v, want %v", got, want)
	}
	if n := client.LLen(ctx, "lago:history:chat").Val(); n != 3 {
		t.Errorf("list length = %d, want 3 (trimmed)", n)
	}
	if ttl := client.TTL(ctx, "lago:history:chat").Val(); ttl <= 0 {
		t.Errorf("ttl = %v, want positive", ttl)
	}
	if got, _ := h.Recent(ctx, "empty"); len(got) != 0 {
		t.Errorf("unknown chat = %v", got)
	}
}
