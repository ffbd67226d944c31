package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/humanizer/humanizer/internal/model"
)

func TestWrite(t *testing.T) {
	t.Parallel()

	credits := model.UnlimitedCredits
	out := output{
		Token:   "hz_admin_abc",
		Hash:    "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		Env:     "ADMIN_TOKEN_HASH=$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		UserID:  "user-1",
		Plan:    "premium",
		Credits: &credits,
	}

	t.Run("plain", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := write(&buf, "plain", out); err != nil {
			t.Fatalf("write() error = %v", err)
		}
		got := buf.String()
		for _, want := range []string{"token: hz_admin_abc", "ADMIN_TOKEN_HASH=", "plan=premium credits=unlimited"} {
			if !strings.Contains(got, want) {
				t.Errorf("plain output missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := write(&buf, "JSON", out); err != nil {
			t.Fatalf("write() error = %v", err)
		}
		var decoded output
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("json output invalid: %v", err)
		}
		if decoded.Token != out.Token || decoded.Hash != out.Hash {
			t.Errorf("decoded = %+v", decoded)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()
		if err := write(&bytes.Buffer{}, "yaml", out); err == nil {
			t.Error("expected an error for an unknown format")
		}
	})
}

func TestAssignPlan_RequiresFlags(t *testing.T) {
	t.Parallel()

	if _, err := assignPlan("", "user-1", "pro"); err == nil {
		t.Error("expected an error without a database URL")
	}
	if _, err := assignPlan("postgres://localhost/db", "user-1", " "); err == nil {
		t.Error("expected an error without a plan")
	}
}
