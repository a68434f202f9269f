package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedNow(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestCheckString_SortedAndSkipsEmpty(t *testing.T) {
	p := TelegramLogin{
		ID:        42,
		FirstName: "Maria",
		Username:  "maria",
		AuthDate:  1700000000,
		Hash:      "ignored",
	}
	got := p.CheckString()
	want := strings.Join([]string{
		"auth_date=1700000000",
		"first_name=Maria",
		"id=42",
		"username=maria",
	}, "\n")
	if got != want {
		t.Fatalf("check string:\n%s\nwant:\n%s", got, want)
	}
	if strings.Contains(got, "hash=") || strings.Contains(got, "last_name=") {
		t.Fatalf("check string leaked empty or hash fields: %s", got)
	}
}

func TestVerify_AcceptsSignedPayload(t *testing.T) {
	v := NewTelegramVerifier("123456:bot-secret", time.Hour)
	v.now = fixedNow(1700000100)

	p := TelegramLogin{ID: 42, FirstName: "Maria", Username: "maria", AuthDate: 1700000000}
	p.Hash = v.Sign(p)

	if err := v.Verify(p); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerify_Rejections(t *testing.T) {
	v := NewTelegramVerifier("123456:bot-secret", time.Hour)
	v.now = fixedNow(1700000100)

	valid := TelegramLogin{ID: 42, AuthDate: 1700000000}
	valid.Hash = v.Sign(valid)

	t.Run("not configured", func(t *testing.T) {
		bare := &TelegramVerifier{}
		if err := bare.Verify(valid); !errors.Is(err, ErrTelegramNotConfigured) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		old := NewTelegramVerifier("123456:bot-secret", time.Minute)
		old.now = fixedNow(1700000000 + 3600)
		if err := old.Verify(valid); !errors.Is(err, ErrTelegramAuthExpired) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		bad := valid
		bad.Username = "mallory"
		if err := v.Verify(bad); !errors.Is(err, ErrTelegramBadHash) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("wrong bot token", func(t *testing.T) {
		other := NewTelegramVerifier("999999:other-secret", time.Hour)
		other.now = fixedNow(1700000100)
		if err := other.Verify(valid); !errors.Is(err, ErrTelegramBadHash) {
			t.Fatalf("err = %v", err)
		}
	})
}
