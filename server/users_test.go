package server

import (
	"testing"
	"time"
)

func TestPasswordViolations(t *testing.T) {
	cases := []struct {
		password string
		count    int
	}{
		{"Secret123", 0},
		{"secret123", 1},
		{"SECRET123", 1},
		{"SecretPass", 1},
		{"Secret 123", 1},
		{"        ", 4},
	}
	for _, c := range cases {
		if v := passwordViolations(c.password); len(v) != c.count {
			t.Fatalf("%q: %v", c.password, v)
		}
	}
}

func TestUserIDForIgnoresCase(t *testing.T) {
	if userIDFor("Alice@Example.com") != userIDFor("alice@example.com") {
		t.Fatal("user id must not depend on email case")
	}
	if userIDFor("alice@example.com") == userIDFor("bob@example.com") {
		t.Fatal("user ids must differ")
	}
}

func TestDeviceTokenScope(t *testing.T) {
	auth := &authority{secret: []byte("k"), now: time.Now}
	tok, err := auth.signDevice("dev1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	cl, err := auth.parse("Bearer " + tok)
	if err != nil {
		t.Fatal(err)
	}
	if cl.Kind != deviceToken || cl.UserID != "u1" || cl.DeviceID != "dev1" {
		t.Fatalf("claims: %+v", cl)
	}

	if !allowed(permissionDevice, cl, "dev1") {
		t.Fatal("own device should be allowed")
	}
	if allowed(permissionDevice, cl, "dev2") || allowed(permissionUser, cl, "") {
		t.Fatal("device token must stay on its device")
	}
	if _, err := auth.parse(tok); err == nil {
		t.Fatal("missing Bearer prefix should fail")
	}
}
