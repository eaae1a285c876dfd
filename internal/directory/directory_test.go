package directory

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testDirectory() *Directory {
	return New(map[string][]string{
		"token-a": {"100", "200"},
		"token-b": {"300"},
	})
}

func TestCredentialFor_Enrolled(t *testing.T) {
	d := testDirectory()
	cred, ok := d.CredentialFor("200")
	if !ok {
		t.Fatal("identity 200 should be enrolled")
	}
	if cred != "token-a" {
		t.Errorf("expected token-a, got %s", cred)
	}
}

func TestCredentialFor_Unknown(t *testing.T) {
	d := testDirectory()
	if _, ok := d.CredentialFor("999"); ok {
		t.Error("unknown identity should not resolve")
	}
}

func TestIdentitiesFor_Order(t *testing.T) {
	d := testDirectory()
	ids := d.IdentitiesFor("token-a")
	if !reflect.DeepEqual(ids, []string{"100", "200"}) {
		t.Errorf("expected enrollment order [100 200], got %v", ids)
	}
}

func TestIdentitiesFor_Unknown(t *testing.T) {
	d := testDirectory()
	if ids := d.IdentitiesFor("nope"); len(ids) != 0 {
		t.Errorf("unknown credential should yield empty list, got %v", ids)
	}
}

func TestNew_SkipsEmptyIdentity(t *testing.T) {
	d := New(map[string][]string{"token": {"", "1"}})
	if !reflect.DeepEqual(d.IdentitiesFor("token"), []string{"1"}) {
		t.Errorf("empty identities should be dropped, got %v", d.IdentitiesFor("token"))
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	data := `{"token-a": ["100", "200"], "token-b": ["300"]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.Credentials() != 2 || d.Identities() != 3 {
		t.Errorf("expected 2 credentials / 3 identities, got %d / %d", d.Credentials(), d.Identities())
	}
}

func TestLoadFile_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed table")
	}
}
