package resettoken

import "testing"

func TestDeriveIsDeterministic(t *testing.T) {
	secret := []byte("server-wide-static-secret")
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	a := Derive(secret, cid)
	b := Derive(secret, cid)
	if a != b {
		t.Fatalf("Derive not deterministic: %x != %x", a, b)
	}
}

func TestDeriveDiffersByConnID(t *testing.T) {
	secret := []byte("server-wide-static-secret")
	a := Derive(secret, []byte{1, 2, 3})
	b := Derive(secret, []byte{1, 2, 4})
	if a == b {
		t.Fatalf("expected different tokens for different connection ids")
	}
}

func TestDeriveDiffersBySecret(t *testing.T) {
	cid := []byte{9, 9, 9}
	a := Derive([]byte("secret-one"), cid)
	b := Derive([]byte("secret-two"), cid)
	if a == b {
		t.Fatalf("expected different tokens for different server secrets")
	}
}
