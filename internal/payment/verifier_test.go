package payment

import (
	"errors"
	"testing"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

func TestSignIsHexHMAC(t *testing.T) {
	const want = "a973003624804740fb799ce2da759133ec55f027247cbaa5df5077e14b115a1e"
	if got := Sign("S", "order_O", "pay_P"); got != want {
		t.Fatalf("Sign = %s, want %s", got, want)
	}
}

func TestVerifyAcceptsExpectedSignature(t *testing.T) {
	v := Verifier{Secret: "S"}
	if err := v.Verify("O", "P", Sign("S", "O", "P")); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func mutate(s string) string {
	b := []byte(s)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	return string(b)
}

func TestVerifyRejectsSingleCharacterMutations(t *testing.T) {
	v := Verifier{Secret: "S"}
	good := Sign("S", "order_123", "pay_456")

	cases := map[string][3]string{
		"signature":   {"order_123", "pay_456", mutate(good)},
		"order ref":   {mutate("order_123"), "pay_456", good},
		"payment ref": {"order_123", mutate("pay_456"), good},
		"empty sig":   {"order_123", "pay_456", ""},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			err := v.Verify(in[0], in[1], in[2])
			if !errors.Is(err, apperr.SignatureMismatch) {
				t.Fatalf("expected SignatureMismatch, got %v", err)
			}
		})
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := Verifier{Secret: "other"}
	if err := v.Verify("O", "P", Sign("S", "O", "P")); err == nil {
		t.Fatalf("expected rejection with a different secret")
	}
	if err := (Verifier{}).Verify("O", "P", Sign("", "O", "P")); err == nil {
		t.Fatalf("an unconfigured secret must never verify")
	}
}
