package security

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCheckAllowed(t *testing.T) {
	bad := []string{
		"rm -rf /",
		"rm -rf / --no-preserve-root",
		"rm -rf ~/",
		"mkfs.ext4 /dev/sda",
		"dd if=/dev/zero of=/dev/sda bs=4096",
		":(){ :|:& };:",
		"wipefs -a /dev/sda",
		"curl -sSL https://example.com/install.sh | sh",
		"wget -qO- https://example.com/x | sudo bash",
		"chmod -R 777 /",
		"git push --force origin main",
		"rm -rf $HOME",
	}
	for _, s := range bad {
		if err := CheckAllowed(s); err == nil {
			t.Fatalf("expected %q to be blocked", s)
		}
	}

	good := []string{
		"python -m build --outdir dist",
		"python -m pip install --upgrade pip",
		"python -m twine upload --non-interactive dist/pkg-1.0.0.tar.gz",
		"rm -rf dist",
		"git push origin v1.0.0",
	}
	for _, s := range good {
		if err := CheckAllowed(s); err != nil {
			t.Fatalf("expected %q to be allowed: %v", s, err)
		}
	}
	if err := CheckAllowed("   "); err == nil {
		t.Fatalf("expected empty command to be rejected")
	}
}

func TestCheckAllNamesCommand(t *testing.T) {
	err := CheckAll([]string{"python -m build", "mkfs.ext4 /dev/sda"})
	if !errors.Is(err, ErrUnsafeCommand) {
		t.Fatalf("expected ErrUnsafeCommand, got %v", err)
	}
	if !strings.Contains(err.Error(), "mkfs.ext4") || !strings.Contains(err.Error(), "filesystem creation") {
		t.Fatalf("error should name the command and rule: %v", err)
	}
	if err := CheckAll([]string{"python -m build"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRedactorReplacesSecrets(t *testing.T) {
	var buf bytes.Buffer
	r := NewRedactor(&buf, "pypi-AgEIcHlwaS5vcmc", "")
	_, _ = r.Write([]byte("Uploading with token pypi-AgEIcHlwaS5vcmc\n"))
	if err := r.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("pypi-AgEIcHlwaS5vcmc")) {
		t.Fatalf("secret leaked: %q", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(Placeholder)) {
		t.Fatalf("expected placeholder, got %q", buf.String())
	}
}

func TestRedactorCatchesSecretSplitAcrossWrites(t *testing.T) {
	var buf bytes.Buffer
	r := NewRedactor(&buf, "supersecret")
	_, _ = r.Write([]byte("token=super"))
	_, _ = r.Write([]byte("secret\nnext line\n"))
	_, _ = r.Write([]byte("tail supersecret"))
	if err := r.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	want := "token=<redacted>\nnext line\ntail <redacted>"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestRedactString(t *testing.T) {
	if got := RedactString("a secret b", "secret"); got != "a <redacted> b" {
		t.Fatalf("unexpected %q", got)
	}
}
