package shutdown

import (
	"bytes"
	"testing"
)

func TestArtifactNonEmpty(t *testing.T) {
	if Size() == 0 {
		t.Fatal("expected embedded artifact to be non-empty")
	}
	if int64(len(Artifact())) != Size() {
		t.Errorf("Size() = %d, len(Artifact()) = %d", Size(), len(Artifact()))
	}
}

func TestArtifactStable(t *testing.T) {
	// Every exhausted request serves the identical bytes.
	if !bytes.Equal(Artifact(), Artifact()) {
		t.Error("expected identical bytes on repeated reads")
	}
}

func TestArtifactLooksLikeEFI(t *testing.T) {
	a := Artifact()
	if len(a) < 2 || a[0] != 'M' || a[1] != 'Z' {
		t.Error("expected an MZ header on the embedded image")
	}
}

func TestContentType(t *testing.T) {
	if ContentType != "application/efi" {
		t.Errorf("unexpected content type %q", ContentType)
	}
}
