//go:build linux

package genl_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/genl-protocol/genl-go/pkg/conn"
	"github.com/genl-protocol/genl-go/pkg/family"
	"github.com/genl-protocol/genl-go/pkg/transport"
)

// These tests talk to the real kernel over NETLINK_GENERIC and skip when
// the socket cannot be opened (non-Linux CI, restricted sandboxes).

func dialKernel(t *testing.T) (*conn.Conn, *family.Client) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	sock, err := transport.Dial(nil)
	if err != nil {
		t.Skipf("cannot open generic netlink socket: %v", err)
	}

	c, h := conn.New(sock, nil)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = c.Run(context.Background())
	}()
	t.Cleanup(func() {
		_ = c.Close()
		select {
		case <-runDone:
		case <-time.After(10 * time.Second):
			t.Error("pump did not stop after Close")
		}
	})

	return c, family.New(h)
}

func TestE2E_ResolveControlFamily(t *testing.T) {
	_, client := dialKernel(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The control family is always present and always has id 16.
	f, err := client.Get(ctx, "nlctrl")
	if err != nil {
		t.Fatalf("get nlctrl: %v", err)
	}
	if f.ID != 16 {
		t.Errorf("nlctrl id = %d, want 16", f.ID)
	}
	if f.Name != "nlctrl" {
		t.Errorf("nlctrl name = %q", f.Name)
	}
}

func TestE2E_ResolveUnknownFamily(t *testing.T) {
	_, client := dialKernel(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := client.Get(ctx, "genl-go-does-not-exist")
	if !errors.Is(err, family.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unregistered family, got %v", err)
	}
}

func TestE2E_ListIncludesControlFamily(t *testing.T) {
	_, client := dialKernel(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	families, err := client.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("kernel reported no generic netlink families")
	}

	found := false
	for _, f := range families {
		if f.Name == "nlctrl" {
			found = true
			break
		}
	}
	if !found {
		t.Error("family list does not contain nlctrl")
	}
}

func TestE2E_ControlMulticastGroups(t *testing.T) {
	_, client := dialKernel(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// nlctrl exposes the "notify" group for family registration events.
	groups, err := client.MulticastGroups(ctx, "nlctrl")
	if err != nil {
		t.Fatalf("multicast groups: %v", err)
	}

	found := false
	for _, g := range groups {
		if g.Name == "notify" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("nlctrl groups = %+v, expected a notify group", groups)
	}
}

func TestE2E_ConcurrentResolves(t *testing.T) {
	_, client := dialKernel(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errc := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			id, err := client.ResolveID(ctx, "nlctrl")
			if err == nil && id != 16 {
				err = errors.New("resolved wrong identifier for nlctrl")
			}
			errc <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-errc; err != nil {
			t.Error(err)
		}
	}
}
